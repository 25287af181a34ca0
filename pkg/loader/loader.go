// Package loader reads advance and payment events from delimited text.
//
// Each row is "kind,date,amount", e.g. "advance,2021-10-01,100.50". Blank lines
// are ignored and a leading header row ("type,date,amount") is skipped.
package loader

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcclellann/advledger/pkg/models"
	"github.com/shopspring/decimal"
)

// RowError reports a row that could not be parsed.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Loader parses event rows.
type Loader struct {
	delimiter rune
}

// Option configures a Loader.
type Option func(*Loader)

// WithDelimiter sets the field delimiter (default is comma).
func WithDelimiter(d rune) Option {
	return func(l *Loader) {
		l.delimiter = d
	}
}

func New(opts ...Option) *Loader {
	l := &Loader{delimiter: ','}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Read parses all rows from r. Amount signs are not checked here; the
// calculator rejects non-positive amounts.
func (l *Loader) Read(r io.Reader) ([]models.Event, error) {
	br := bufio.NewReader(r)
	// UTF-8 BOM: 0xEF, 0xBB, 0xBF
	if bom, err := br.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.Comma = l.delimiter
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	var events []models.Event
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &RowError{Line: pe.Line, Err: pe.Err}
			}
			return nil, fmt.Errorf("could not read events: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}
		if len(events) == 0 && isHeader(record) {
			continue
		}

		event, err := parseRow(record)
		if err != nil {
			return nil, &RowError{Line: line, Err: err}
		}
		events = append(events, event)
	}
	return events, nil
}

// LoadFile parses the events in the file at path.
func (l *Loader) LoadFile(path string) ([]models.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()

	events, err := l.Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

func parseRow(record []string) (models.Event, error) {
	if len(record) != 3 {
		return models.Event{}, fmt.Errorf("expected 3 fields (kind, date, amount), got %d", len(record))
	}
	kind, err := models.ParseEventKind(record[0])
	if err != nil {
		return models.Event{}, err
	}
	date, err := models.ParseDate(record[1])
	if err != nil {
		return models.Event{}, err
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(record[2]))
	if err != nil {
		return models.Event{}, fmt.Errorf("invalid amount %q: %w", record[2], err)
	}
	return models.Event{Kind: kind, Date: date, Amount: amount}, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func isHeader(record []string) bool {
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "type" || first == "kind"
}
