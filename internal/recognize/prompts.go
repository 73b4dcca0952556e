package recognize

import (
	"fmt"
	"strings"
)

// Mode selects the prompt sent with a page image and, implicitly, the shape
// of the payload that comes back.
type Mode string

const (
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
	ModeTable    Mode = "table"
	ModeLayout   Mode = "layout"
)

var prompts = map[Mode]string{
	ModeText: "Extract all text from this image. Output the plain text only, " +
		"in the original reading order, without any commentary.",
	ModeMarkdown: "Convert the document in this image to Markdown. Preserve headings, " +
		"lists, emphasis and tables. Output Markdown only, without code fences.",
	ModeJSON: "Extract the content of this image as a JSON object with a \"text\" field " +
		"containing the full text and a \"blocks\" array of {\"type\", \"content\"} objects " +
		"in reading order. Output valid JSON only, without code fences.",
	ModeTable: "Extract every table in this image as HTML <table> markup. " +
		"Output only the HTML, nothing else.",
	ModeLayout: "Convert this page to Markdown, preserving the visual layout: headings, " +
		"multi-column reading order and tables as Markdown tables. Output Markdown only.",
}

// PromptFor returns the prompt template for a mode.
func PromptFor(mode Mode) (string, error) {
	p, ok := prompts[mode]
	if !ok {
		return "", fmt.Errorf("unknown recognition mode: %s", mode)
	}
	return p, nil
}

// Modes lists the supported recognition modes.
func Modes() []Mode {
	return []Mode{ModeText, ModeMarkdown, ModeJSON, ModeTable, ModeLayout}
}

// CleanFences strips a Markdown code fence wrapper from a model response.
// Vision models habitually wrap JSON and HTML payloads in ```lang fences
// even when told not to.
func CleanFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop the language tag on the opening fence line.
		first := strings.TrimSpace(trimmed[:idx])
		if len(first) <= 10 && !strings.ContainsAny(first, " \t{<") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
