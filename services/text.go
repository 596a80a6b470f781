package services

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// fold lowercases s and removes diacritics so "Gràcia" and "gracia" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(normaliseText(out))
}

// plainText returns the visible text of an HTML fragment. Non-HTML input is returned as is.
func plainText(s string) string {
	if !strings.ContainsRune(s, '<') {
		return normaliseText(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return normaliseText(s)
	}
	doc.Find("br, p, li, div").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})
	doc.Find("script, style").Remove()
	return normaliseText(doc.Text())
}

// termMatcher matches whole terms inside folded text.
type termMatcher struct {
	term string
	re   *regexp.Regexp
}

func newTermMatchers(terms []string) []termMatcher {
	out := make([]termMatcher, 0, len(terms))
	for _, t := range terms {
		ft := fold(t)
		if ft == "" {
			continue
		}
		re := regexp.MustCompile(`(^|[^\p{L}\p{N}])` + regexp.QuoteMeta(ft) + `($|[^\p{L}\p{N}])`)
		out = append(out, termMatcher{term: ft, re: re})
	}
	return out
}

// firstTerm returns the first term found in the already folded text.
func firstTerm(matchers []termMatcher, folded string) string {
	for _, m := range matchers {
		if m.re.MatchString(folded) {
			return m.term
		}
	}
	return ""
}
