package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Crime Reports",
		Headers: []string{"ID", "Title", "Status"},
		Rows: [][]string{
			{"r-1", "Stolen bike", "NEW"},
			{"r-2", "Broken window, back door"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "ID,Title,Status\nr-1,Stolen bike,NEW\nr-2,\"Broken window, back door\",\n", string(out))
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	_, err := Render(Format("xlsx"), sampleDataset())
	assert.Error(t, err)

	_, err = Render(FormatCSV, Dataset{})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
