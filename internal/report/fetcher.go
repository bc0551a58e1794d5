package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"courierval/internal/util"
)

// Fetcher produces the portal export for one search and returns the path of
// the downloaded spreadsheet.
type Fetcher interface {
	Fetch(ctx context.Context, searchTerm string) (string, error)
	Close() error
}

// DirectoryFetcher serves exports that were downloaded by hand, one
// <search term>.xlsx per search.
type DirectoryFetcher struct {
	dir string
}

func NewDirectoryFetcher(dir string) *DirectoryFetcher {
	return &DirectoryFetcher{dir: dir}
}

func (d *DirectoryFetcher) Fetch(ctx context.Context, searchTerm string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	candidates := []string{searchTerm, util.SafeFileName(searchTerm), strings.ToUpper(searchTerm)}
	for _, name := range candidates {
		path := filepath.Join(d.dir, name+".xlsx")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no export for %q in %s", searchTerm, d.dir)
}

func (d *DirectoryFetcher) Close() error { return nil }
