/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: page.go
Description: Page summaries built from a DOM dump with goquery.
*/

package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageSummary is a short description of a loaded page
type PageSummary struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Links    int      `json:"links"`
	Scripts  int      `json:"scripts"`
	Forms    int      `json:"forms"`
	Headings []string `json:"headings,omitempty"`
}

// Summarize parses html and counts the elements of interest
func Summarize(url, html string) (*PageSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	summary := &PageSummary{
		URL:     url,
		Title:   strings.TrimSpace(doc.Find("title").First().Text()),
		Links:   doc.Find("a[href]").Length(),
		Scripts: doc.Find("script").Length(),
		Forms:   doc.Find("form").Length(),
	}
	doc.Find("h1, h2").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			summary.Headings = append(summary.Headings, text)
		}
	})
	return summary, nil
}
