package output

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lindenau-systems/folio/internal/recognize"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "text", want: FormatText},
		{in: "TXT", want: FormatText},
		{in: "plain", want: FormatText},
		{in: "markdown", want: FormatMarkdown},
		{in: "md", want: FormatMarkdown},
		{in: "json", want: FormatJSON},
		{in: "yaml", want: FormatYAML},
		{in: "yml", want: FormatYAML},
		{in: " Json ", want: FormatJSON},
		{in: "csv", wantErr: true},
		{in: "pdf", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			require.Error(t, err, "input %q", tt.in)
			assert.Contains(t, err.Error(), "invalid output format")
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestFormatExt(t *testing.T) {
	assert.Equal(t, ".txt", FormatText.Ext())
	assert.Equal(t, ".md", FormatMarkdown.Ext())
	assert.Equal(t, ".json", FormatJSON.Ext())
	assert.Equal(t, ".yaml", FormatYAML.Ext())
}

func TestRender_Text(t *testing.T) {
	doc := FromRun(sampleRun(), recognize.ModeText, "")

	got, err := Render(doc, FormatText)
	require.NoError(t, err)

	assert.Contains(t, got, "--- Page 1 ---\nHello\n")
	assert.Contains(t, got, "--- Page 2 ---\n[recognition failed: transient-server after 3 attempt(s)]")
	assert.Contains(t, got, "--- Page 3 ---\nWorld\n")
	assert.Contains(t, got, "1 of 3 pages failed: 2")
}

func TestRender_TextCleanRunHasNoSummary(t *testing.T) {
	run := sampleRun()
	run.Outcomes[1].Success = true
	run.Outcomes[1].Text = "Recovered"
	run.Outcomes[1].ErrorKind = ""
	run.Outcomes[1].Err = nil
	run.Failed = 0

	got, err := Render(FromRun(run, recognize.ModeText, ""), FormatText)
	require.NoError(t, err)
	assert.NotContains(t, got, "pages failed")
}

func TestRender_Markdown(t *testing.T) {
	doc := FromRun(sampleRun(), recognize.ModeMarkdown, "")

	got, err := Render(doc, FormatMarkdown)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "# invoice.pdf\n"))
	assert.Contains(t, got, "## Page 1\n\nHello\n")
	assert.Contains(t, got, "> recognition failed: transient-server after 3 attempt(s)")
	assert.Contains(t, got, "## Page 3\n\nWorld\n")
}

func TestRender_JSONRoundTrips(t *testing.T) {
	doc := FromRun(sampleRun(), recognize.ModeText, "qwen3-vl-flash")

	got, err := Render(doc, FormatJSON)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, "\n"))

	var decoded DocumentResult
	require.NoError(t, json.Unmarshal([]byte(got), &decoded))
	assert.Equal(t, doc.RunID, decoded.RunID)
	assert.Equal(t, doc.Status, decoded.Status)
	assert.Equal(t, doc.Usage, decoded.Usage)
	require.Len(t, decoded.Pages, 3)
	assert.Equal(t, "transient-server", decoded.Pages[1].ErrorKind)
}

func TestRender_YAMLRoundTrips(t *testing.T) {
	doc := FromRun(sampleRun(), recognize.ModeText, "")

	got, err := Render(doc, FormatYAML)
	require.NoError(t, err)

	var decoded DocumentResult
	require.NoError(t, yaml.Unmarshal([]byte(got), &decoded))
	assert.Equal(t, doc.Document, decoded.Document)
	assert.Equal(t, doc.TotalPages, decoded.TotalPages)
	require.Len(t, decoded.Pages, 3)
	assert.Equal(t, "Hello", decoded.Pages[0].Text)
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := Render(FromRun(sampleRun(), recognize.ModeText, ""), Format("csv"))
	assert.Error(t, err)
}

func TestFailureSummary_TruncatesLongLists(t *testing.T) {
	doc := &DocumentResult{TotalPages: 12}
	for i := 1; i <= 12; i++ {
		doc.Pages = append(doc.Pages, PageResult{Page: i, Success: i%2 == 0})
	}

	summary := failureSummary(doc)
	assert.Equal(t, "6 of 12 pages failed: 1, 3, 5, 7, 9 and 1 more", summary)
}
