// Package pathmeta derives category and geography hints from a file's
// location and filename. All functions are pure and never fail: ambiguous
// input yields empty hints, not errors.
package pathmeta

import (
	"path/filepath"
	"regexp"
	"strings"
)

var cityStateRe = regexp.MustCompile(`(?i)_in_(.*)\.csv$`)

// Category returns the category name for a file under root: the name of the
// directory containing the file, resolved relative to root. Files outside
// root (or directly under it) fall back to the literal parent directory.
func Category(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(filepath.Dir(path))
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return filepath.Base(filepath.Dir(path))
}

// CityState parses a filename of the form <anything>_in_<city-tokens>_<state>.csv.
// The last underscore-separated token is the state; the remaining tokens joined
// with spaces (hyphens replaced by spaces) form the city. Filenames not
// matching the pattern yield ("", "").
func CityState(name string) (city, state string) {
	m := cityStateRe.FindStringSubmatch(name)
	if m == nil {
		return "", ""
	}
	parts := strings.Split(m[1], "_")
	if len(parts) < 2 {
		return "", ""
	}
	state = parts[len(parts)-1]
	city = strings.Join(parts[:len(parts)-1], " ")
	city = strings.TrimSpace(strings.ReplaceAll(city, "-", " "))
	state = strings.TrimSpace(strings.ReplaceAll(state, "-", " "))
	return city, state
}
