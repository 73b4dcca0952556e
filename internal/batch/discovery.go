package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lindenau-systems/folio/internal/render"
)

// discoverDocuments expands the given files and directories into the list
// of recognizable documents, in argument order. Files named explicitly are
// taken as-is (patterns permitting); directory scans additionally filter
// by supported extension.
func discoverDocuments(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var docs []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			files, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			docs = append(docs, files...)
		} else if shouldIncludeFile(arg, includePatterns, excludePatterns) {
			docs = append(docs, arg)
		}
	}

	return docs, nil
}

// discoverInDirectory walks dir collecting supported document files.
func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if !isDocumentPath(path) {
			return nil
		}
		if shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	}

	return files, filepath.Walk(dir, walkFn)
}

// isDocumentPath reports whether the file extension is one the renderer
// can open.
func isDocumentPath(path string) bool {
	return render.IsPDFPath(path) || render.IsImagePath(path)
}

// shouldIncludeFile applies the include and exclude glob patterns to the
// file's base name. Excludes win.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
