package db

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// plainText strips markup from an imported field. Exports from reference
// managers often carry <p>, <i> or <sub> tags in abstracts.
func plainText(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return normalizeSpace(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return normalizeSpace(s)
	}
	doc.Find("script, style").Remove()

	// Block boundaries become spaces so words on either side stay apart.
	doc.Find("p, li, br, div").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})
	return normalizeSpace(doc.Find("body").Text())
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
