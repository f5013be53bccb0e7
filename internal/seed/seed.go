// Package seed reads spreadsheet files from disk and imports them into a
// collection. The server uses it for DATA_SEED_FILES; the CLI for its
// inputs and --existing snapshot.
package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JonMunkholm/AddressImport/internal/core"
)

// Extensions are the file types picked up when a path names a directory.
var Extensions = []string{".csv", ".xlsx", ".xlsm"}

// Expand resolves paths into a list of files. Directories contribute their
// spreadsheet files in name order; glob patterns are expanded.
func Expand(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", m, err)
			}
			if !info.IsDir() {
				out = append(out, m)
				continue
			}

			entries, err := os.ReadDir(m)
			if err != nil {
				return nil, fmt.Errorf("reading directory %s: %w", m, err)
			}
			for _, e := range entries {
				if e.IsDir() || !slices.Contains(Extensions, strings.ToLower(filepath.Ext(e.Name()))) {
					continue
				}
				out = append(out, filepath.Join(m, e.Name()))
			}
		}
	}
	return out, nil
}

// ReadFiles loads every file named by paths, see Expand.
func ReadFiles(paths []string) ([]core.SourceFile, error) {
	names, err := Expand(paths)
	if err != nil {
		return nil, err
	}
	files := make([]core.SourceFile, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		files = append(files, core.SourceFile{Name: filepath.Base(name), Data: data})
	}
	return files, nil
}

// Load imports the files named by paths against the collection and merges
// the result. It returns the number of records added.
func Load(ctx context.Context, im *core.Importer, records *core.Collection, paths []string) (int, error) {
	files, err := ReadFiles(paths)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, core.ErrNoFiles
	}

	result, err := im.Import(ctx, files, records.Records())
	if err != nil {
		return 0, err
	}
	added, err := records.Merge(result.Records)
	if err != nil {
		return 0, fmt.Errorf("merge seed records: %w", err)
	}
	return added, nil
}
