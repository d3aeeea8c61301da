// Package discover decides which changed paths are analyzable source files.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/bit/internal/lang"
)

// FileEntry represents a selected source file.
type FileEntry struct {
	Path     string // Relative to repo root, slash-separated
	Language string
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	"vendor":        {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	"build":         {},
	"dist":          {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
}

// Filter selects paths by language and ignore rules.
type Filter struct {
	langs  map[string]struct{}
	ignore *ignore.GitIgnore
}

// NewFilter builds a filter. If languages is non-empty, only files of the
// listed languages match. ignoreFile, when non-empty, names a gitignore-style
// file relative to root; a missing file is not an error.
func NewFilter(root string, languages []string, ignoreFile string) (*Filter, error) {
	f := &Filter{langs: make(map[string]struct{}, len(languages))}
	for _, l := range languages {
		if _, ok := lang.Languages[l]; !ok {
			return nil, fmt.Errorf("unknown language %q (supported: %s)", l, strings.Join(lang.Names(), ", "))
		}
		f.langs[l] = struct{}{}
	}
	if ignoreFile != "" {
		gi, err := loadIgnore(filepath.Join(root, ignoreFile))
		if err != nil {
			return nil, err
		}
		f.ignore = gi
	}
	return f, nil
}

// NewFilterFromLines is NewFilter with ignore rules given inline.
func NewFilterFromLines(languages []string, ignoreLines ...string) (*Filter, error) {
	f, err := NewFilter("", languages, "")
	if err != nil {
		return nil, err
	}
	if len(ignoreLines) > 0 {
		f.ignore = ignore.CompileIgnoreLines(ignoreLines...)
	}
	return f, nil
}

// Match reports whether p should be analyzed and, if so, its language.
func (f *Filter) Match(p string) (FileEntry, bool) {
	p = filepath.ToSlash(p)
	dir, name := path.Split(p)
	if strings.HasPrefix(name, ".") {
		return FileEntry{}, false
	}
	for _, seg := range strings.Split(strings.Trim(dir, "/"), "/") {
		if seg == "" {
			continue
		}
		if _, skip := skipDirs[seg]; skip || strings.HasPrefix(seg, ".") {
			return FileEntry{}, false
		}
	}
	if f.ignore != nil && f.ignore.MatchesPath(p) {
		return FileEntry{}, false
	}

	langName := lang.ForExtension(path.Ext(name))
	if langName == "" {
		return FileEntry{}, false
	}
	if len(f.langs) > 0 {
		if _, ok := f.langs[langName]; !ok {
			return FileEntry{}, false
		}
	}
	return FileEntry{Path: p, Language: langName}, true
}

// Select returns the matching paths, sorted and de-duplicated.
func (f *Filter) Select(paths []string) []FileEntry {
	seen := make(map[string]struct{}, len(paths))
	var results []FileEntry
	for _, p := range paths {
		e, ok := f.Match(p)
		if !ok {
			continue
		}
		if _, dup := seen[e.Path]; dup {
			continue
		}
		seen[e.Path] = struct{}{}
		results = append(results, e)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})
	return results
}

func loadIgnore(p string) (*ignore.GitIgnore, error) {
	gi, err := ignore.CompileIgnoreFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		if _, statErr := os.Stat(p); errors.Is(statErr, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading %s: %w", p, err)
	}
	return gi, nil
}
