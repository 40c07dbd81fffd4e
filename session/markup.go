package session

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed HTML page supporting CSS selector queries.
type Document = goquery.Document

// Parse builds a Document from HTML text. Tag names are matched
// case-insensitively: the HTML5 parser lower-cases them.
func Parse(text string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parsing markup: %w", err)
	}
	return doc, nil
}
