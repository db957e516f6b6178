package ingest

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// defaultExtensions are the formats ingested when no explicit glob is given.
var defaultExtensions = map[string]bool{".csv": true, ".xlsx": true}

// ParsePatterns expands the glob option: "all" (or empty) selects every
// supported format; otherwise the value is a comma-separated pattern list.
func ParsePatterns(glob string) []string {
	if glob == "" || glob == "all" {
		return nil
	}
	var patterns []string
	for _, p := range strings.Split(glob, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// Discover walks root and returns candidate files: matched against patterns
// (or the default extension set when patterns is nil), de-duplicated by
// absolute path, sorted lexicographically, and capped at limit when positive.
func Discover(root string, patterns []string, limit int) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: root %s", root)
	}
	if !info.IsDir() {
		return nil, eris.Errorf("ingest: root %s is not a directory", root)
	}

	seen := make(map[string]bool)
	var files []string

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !matches(p, patterns) {
			return nil
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if !seen[abs] {
			seen[abs] = true
			files = append(files, abs)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: walk %s", root)
	}

	sort.Strings(files)
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

// matches applies the pattern set to a file path. Patterns match against the
// base name; a leading "**/" is stripped so rglob-style patterns work.
func matches(p string, patterns []string) bool {
	base := filepath.Base(p)
	if patterns == nil {
		return defaultExtensions[strings.ToLower(filepath.Ext(base))]
	}
	for _, pat := range patterns {
		pat = strings.TrimPrefix(pat, "**/")
		if ok, err := path.Match(pat, base); err == nil && ok {
			return true
		}
	}
	return false
}
