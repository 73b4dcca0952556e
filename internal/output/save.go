package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Write renders the document result and writes it to w.
func Write(w io.Writer, doc *DocumentResult, format Format) error {
	rendered, err := Render(doc, format)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, rendered); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// Save writes the rendered document result to path, or to stdout when path
// is empty or "-".
func Save(doc *DocumentResult, format Format, path string) error {
	if path == "" || path == "-" {
		return Write(os.Stdout, doc, format)
	}

	rendered, err := Render(doc, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o600); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	return nil
}

// DerivedPath maps a source document path to an output file path in dir,
// swapping the extension for the format's. An empty dir keeps the source
// directory.
func DerivedPath(sourcePath string, format Format, dir string) string {
	base := filepath.Base(sourcePath)
	base = strings.TrimSuffix(base, filepath.Ext(base)) + format.Ext()
	if dir == "" {
		dir = filepath.Dir(sourcePath)
	}
	return filepath.Join(dir, base)
}
