package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength bounds generated slugs; longer ones are cut at a hyphen.
const MaxLength = 80

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that do not decompose into base letter plus combining mark.
var special = strings.NewReplacer(
	"ı", "i", "ß", "ss", "ø", "o", "ł", "l", "đ", "d", "æ", "ae", "œ", "oe",
)

// Generate turns a product name into a URL-safe slug.
//
//	"Kadın Çanta"       -> "kadin-canta"
//	"Crème Brûlée Set!" -> "creme-brulee-set"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = special.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}

	s = strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
	if len(s) > MaxLength {
		s = s[:MaxLength]
		if i := strings.LastIndexByte(s, '-'); i > 0 {
			s = s[:i]
		}
		s = strings.Trim(s, "-")
	}
	return s
}

// WithSuffix appends the first 8 characters of id, which keeps slugs of
// same-named products from colliding.
func WithSuffix(slug, id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	if slug == "" {
		return id
	}
	if id == "" {
		return slug
	}
	return slug + "-" + id
}
