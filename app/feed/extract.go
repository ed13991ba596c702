package feed

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractImagesAndAnchors returns image sources and anchor hrefs found in an HTML fragment.
func extractImagesAndAnchors(value string) ([]string, []string) {
	if !strings.Contains(value, "<") {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return nil, nil
	}
	return extractFromSelection(doc.Selection)
}

func extractFromSelection(sel *goquery.Selection) ([]string, []string) {
	var images, anchors []string

	sel.Find("img").AddSelection(sel.Filter("img")).Each(func(_ int, s *goquery.Selection) {
		if src := strings.TrimSpace(s.AttrOr("src", "")); src != "" {
			images = append(images, src)
		}
	})
	sel.Find("a").AddSelection(sel.Filter("a")).Each(func(_ int, s *goquery.Selection) {
		if href := s.AttrOr("href", ""); href != "" {
			anchors = append(anchors, href)
		}
	})

	return images, anchors
}
