package client

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Summary is the card-sized view of an admin-authored shop description.
type Summary struct {
	Text     string // plain text, whitespace collapsed
	ImageURL string // first image in the description, if any
	HTML     string // sanitized description, safe to render as-is
}

var descriptionPolicy = bluemonday.UGCPolicy()

// Summarize sanitizes a description and extracts a plain-text excerpt of at
// most maxRunes runes. A non-positive maxRunes keeps the full text.
func Summarize(description string, maxRunes int) (Summary, error) {
	safe := descriptionPolicy.Sanitize(description)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(safe))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to parse description: %w", err)
	}

	// block elements would otherwise glue adjacent words together
	doc.Find("p, li, br, h1, h2, h3, h4, div").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	summary := Summary{
		Text: truncate(strings.Join(strings.Fields(doc.Text()), " "), maxRunes),
		HTML: safe,
	}

	if src, ok := doc.Find("img[src]").First().Attr("src"); ok {
		summary.ImageURL = strings.TrimSpace(src)
	}

	return summary, nil
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	cut := strings.TrimSpace(string(runes[:maxRunes]))
	return cut + "…"
}
