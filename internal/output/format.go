package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects the rendering of a document result.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{string(FormatText), string(FormatMarkdown), string(FormatJSON), string(FormatYAML)}
}

// ParseFormat resolves a user-supplied format name, accepting the usual
// short aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt", "plain":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (must be one of: %s)", s, strings.Join(Formats(), ", "))
	}
}

// Ext returns the file extension for the format, dot included.
func (f Format) Ext() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	default:
		return ".txt"
	}
}

// Render serializes the document result in the given format.
func Render(doc *DocumentResult, format Format) (string, error) {
	switch format {
	case FormatJSON:
		bts, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal result: %w", err)
		}
		return string(bts) + "\n", nil
	case FormatYAML:
		bts, err := yaml.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("marshal result: %w", err)
		}
		return string(bts), nil
	case FormatMarkdown:
		return renderMarkdown(doc), nil
	case FormatText, "":
		return renderText(doc), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

// renderText writes page sections separated by headers, with a failure
// summary when pages are missing.
func renderText(doc *DocumentResult) string {
	var out strings.Builder
	for i, page := range doc.Pages {
		if i > 0 {
			out.WriteString("\n")
		}
		fmt.Fprintf(&out, "--- Page %d ---\n", page.Page)
		if page.Success {
			out.WriteString(page.Text)
			out.WriteString("\n")
		} else {
			fmt.Fprintf(&out, "[recognition failed: %s after %d attempt(s)]\n", page.ErrorKind, page.Attempts)
		}
	}
	if summary := failureSummary(doc); summary != "" {
		out.WriteString("\n")
		out.WriteString(summary)
		out.WriteString("\n")
	}
	return out.String()
}

// renderMarkdown writes one section per page under a document heading.
func renderMarkdown(doc *DocumentResult) string {
	var out strings.Builder
	fmt.Fprintf(&out, "# %s\n", doc.Document)
	for _, page := range doc.Pages {
		fmt.Fprintf(&out, "\n## Page %d\n\n", page.Page)
		if page.Success {
			out.WriteString(page.Text)
			out.WriteString("\n")
		} else {
			fmt.Fprintf(&out, "> recognition failed: %s after %d attempt(s)\n", page.ErrorKind, page.Attempts)
		}
	}
	if summary := failureSummary(doc); summary != "" {
		out.WriteString("\n> ")
		out.WriteString(summary)
		out.WriteString("\n")
	}
	return out.String()
}

// failureSummary names up to five failed pages, or returns "" for clean
// runs.
func failureSummary(doc *DocumentResult) string {
	failed := doc.FailedPageNumbers()
	if len(failed) == 0 {
		return ""
	}

	shown := failed
	const maxShown = 5
	if len(shown) > maxShown {
		shown = shown[:maxShown]
	}
	parts := make([]string, len(shown))
	for i, p := range shown {
		parts[i] = fmt.Sprintf("%d", p)
	}
	list := strings.Join(parts, ", ")
	if extra := len(failed) - len(shown); extra > 0 {
		list = fmt.Sprintf("%s and %d more", list, extra)
	}
	return fmt.Sprintf("%d of %d pages failed: %s", len(failed), doc.TotalPages, list)
}
