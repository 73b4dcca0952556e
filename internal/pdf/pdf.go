// Package pdf prepares PDF documents for recognition: inspection, structural
// validation, page selection parsing and password unlocking, all backed by
// pdfcpu. Rasterization itself lives in the render package.
package pdf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Info summarizes a document before processing.
type Info struct {
	Path      string
	PageCount int
	Encrypted bool
}

// Inspect reads basic facts about a PDF without rendering it. Encrypted
// files report Encrypted with a zero page count.
func Inspect(path string) (*Info, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		if IsPasswordError(err) {
			return &Info{Path: path, Encrypted: true}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Info{Path: path, PageCount: count}, nil
}

// Validate runs pdfcpu's structural validation on the file.
func Validate(path string) error {
	if err := api.ValidateFile(path, nil); err != nil {
		return fmt.Errorf("validate %s: %w", path, err)
	}
	return nil
}

// ParsePageRange expands a one-based selection like "2,5-7" into zero-based
// page indices, keeping first occurrences in request order. An empty
// selection means every page and returns nil.
func ParsePageRange(sel string, pageCount int) ([]int, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil, nil
	}

	var indices []int
	seen := make(map[int]struct{})
	for _, token := range strings.Split(sel, ",") {
		pages, err := expandToken(strings.TrimSpace(token), pageCount)
		if err != nil {
			return nil, err
		}
		for _, p := range pages {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			indices = append(indices, p)
		}
	}
	return indices, nil
}

// expandToken expands a single "3" or "2-5" token into zero-based indices.
func expandToken(token string, pageCount int) ([]int, error) {
	if token == "" {
		return nil, errors.New("empty page token")
	}

	if start, end, isRange := strings.Cut(token, "-"); isRange {
		first, err := parsePageNumber(start, pageCount)
		if err != nil {
			return nil, err
		}
		last, err := parsePageNumber(end, pageCount)
		if err != nil {
			return nil, err
		}
		if first > last {
			return nil, fmt.Errorf("page range %q runs backwards", token)
		}
		out := make([]int, 0, last-first+1)
		for p := first; p <= last; p++ {
			out = append(out, p)
		}
		return out, nil
	}

	p, err := parsePageNumber(token, pageCount)
	if err != nil {
		return nil, err
	}
	return []int{p}, nil
}

// parsePageNumber converts a one-based page string into a zero-based index,
// enforcing document bounds.
func parsePageNumber(s string, pageCount int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid page number %q", s)
	}
	if n < 1 || n > pageCount {
		return 0, fmt.Errorf("page %d out of range 1-%d", n, pageCount)
	}
	return n - 1, nil
}
