package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that do not decompose into base + combining mark under NFD.
var special = strings.NewReplacer(
	"ı", "i", "ß", "ss", "æ", "ae", "ø", "o", "đ", "d", "ł", "l", "œ", "oe",
)

// Generate turns a product or category name into a URL slug.
//
//   - "Çocuk Ürünleri" -> "cocuk-urunleri"
//   - "Crème Brûlée Mug" -> "creme-brulee-mug"
//   - "Hello   World!" -> "hello-world"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = special.Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// WithSuffix appends a short disambiguator, used when a slug is already taken.
func WithSuffix(slug, suffix string) string {
	suffix = Generate(suffix)
	if suffix == "" {
		return slug
	}
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
