package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mcclellann/advledger/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Read(t *testing.T) {
	input := "advance,2021-10-01,100.50\n\npayment, 2021-10-05, 120\n"

	events, err := New().Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, models.EventKindAdvance, events[0].Kind)
	assert.Equal(t, "2021-10-01", events[0].Date.Format(models.DateLayout))
	assert.Equal(t, "100.5", events[0].Amount.String())

	assert.Equal(t, models.EventKindPayment, events[1].Kind)
	assert.Equal(t, "2021-10-05", events[1].Date.Format(models.DateLayout))
	assert.Equal(t, "120", events[1].Amount.String())
}

func TestLoader_SkipsHeaderAndBOM(t *testing.T) {
	input := "\xEF\xBB\xBFtype,date,amount\nadvance,2021-10-01,10\n"

	events, err := New().Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "10", events[0].Amount.String())
}

func TestLoader_Delimiter(t *testing.T) {
	events, err := New(WithDelimiter(';')).Read(strings.NewReader("payment;2021-10-05;0.01\n"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "0.01", events[0].Amount.String())
}

func TestLoader_RowErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
		want  string
	}{
		{"unknown kind", "advance,2021-10-01,1\nrefund,2021-10-02,1\n", 2, "unknown event kind"},
		{"bad date", "advance,10/01/2021,1\n", 1, "invalid date"},
		{"bad amount", "advance,2021-10-01,1\n\npayment,2021-10-03,abc\n", 3, "invalid amount"},
		{"missing field", "advance,2021-10-01\n", 1, "expected 3 fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Read(strings.NewReader(tt.input))
			require.Error(t, err)

			var rowErr *RowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, tt.line, rowErr.Line)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte("advance,2021-10-01,100.50\npayment,2021-10-05,120\n"), 0o644))

	events, err := New().LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	_, err = New().LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
