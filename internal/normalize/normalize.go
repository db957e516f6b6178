// Package normalize extracts canonical lead fields from raw row mappings.
package normalize

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/leads-cli/internal/extract"
)

// Stored column widths; values longer than these are clipped on extraction.
const (
	maxNameLen    = 255
	maxWebsiteLen = 255
	maxEmailLen   = 255
	maxPhoneLen   = 100
)

var queryGeoRe = regexp.MustCompile(` in (.*)`)

// Defaults carries the file-level hints applied when a row has no geography
// or category of its own.
type Defaults struct {
	Category string
	City     string
	State    string
}

// Normalized is the canonical view of one raw row.
type Normalized struct {
	BusinessName string
	Website      string
	Email        string
	Phone        string
	Address      string
	Domain       string
	Category     string
	City         string
	State        string
	Rating       string
	Extra        map[string]string
}

// Normalizer applies candidate-header rules to raw rows.
type Normalizer struct {
	rules Rules
}

// New creates a Normalizer with the given rules.
func New(rules Rules) *Normalizer {
	return &Normalizer{rules: rules}
}

// Row normalizes one raw row against the file-level defaults. It never
// fails: unparseable values degrade to empty fields.
func (n *Normalizer) Row(row extract.Row, d Defaults) Normalized {
	consumed := make(map[string]bool)
	pick := func(keys []string) string {
		for _, k := range keys {
			if v, ok := row[k]; ok && v != "" {
				consumed[k] = true
				return v
			}
		}
		return ""
	}

	name := pick(n.rules.Name)
	if name == "" {
		name = "Unknown"
	}

	out := Normalized{
		BusinessName: clip(name, maxNameLen),
		Website:      clip(pick(n.rules.Website), maxWebsiteLen),
		Email:        clip(pick(n.rules.Email), maxEmailLen),
		Phone:        clip(pick(n.rules.Phone), maxPhoneLen),
		Address:      pick(n.rules.Address),
		Category:     d.Category,
		Rating:       row["Rating"],
	}
	out.Domain = Domain(out.Website, out.Email)

	out.City, out.State = rowGeography(row, consumed)
	if out.City == "" {
		out.City = d.City
	}
	if out.State == "" {
		out.State = d.State
	}

	// Preserve every column not consumed above so nothing the reader
	// extracted is silently discarded.
	extra := make(map[string]string, len(row))
	for k, v := range row {
		if !consumed[k] {
			extra[k] = v
		}
	}
	out.Extra = extra

	return out
}

// rowGeography derives a row-level geography override. A "Query" column
// phrase of the form "<anything> in <city tokens> <state>" wins; explicit
// City/State columns are the fallback.
func rowGeography(row extract.Row, consumed map[string]bool) (city, state string) {
	if q := row["Query"]; q != "" {
		q = strings.ReplaceAll(q, "_", " ")
		if m := queryGeoRe.FindStringSubmatch(q); m != nil {
			parts := strings.Fields(strings.TrimSpace(m[1]))
			if len(parts) >= 2 {
				consumed["Query"] = true
				state = parts[len(parts)-1]
				city = strings.Join(parts[:len(parts)-1], " ")
			}
		}
	}
	if city == "" && row["City"] != "" {
		consumed["City"] = true
		city = row["City"]
	}
	if state == "" && row["State"] != "" {
		consumed["State"] = true
		state = row["State"]
	}
	return city, state
}

// Domain derives a bare domain from the website, falling back to the email.
// Derivation failures yield "" rather than an error.
func Domain(website, email string) string {
	if website != "" {
		if d := cleanDomain(website); d != "" {
			return d
		}
	}
	if email != "" {
		return cleanDomain(email)
	}
	return ""
}

func cleanDomain(v string) string {
	d := strings.ToLower(strings.TrimSpace(v))
	if i := strings.LastIndex(d, "@"); i >= 0 {
		d = d[i+1:]
	}
	if strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://") {
		u, err := url.Parse(d)
		if err != nil {
			return ""
		}
		d = u.Host
	}
	if i := strings.Index(d, "/"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "www.")
	return d
}

// clip truncates s to at most n bytes without splitting a rune, so clipped
// values remain valid UTF-8.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
