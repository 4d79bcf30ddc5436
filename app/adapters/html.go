package adapters

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type htmlSummary struct {
	Text     string
	HasPhoto bool
	HasVideo bool
}

// inspectHTML flattens an HTML fragment to text and reports embedded media.
func inspectHTML(fragment string) htmlSummary {
	if strings.TrimSpace(fragment) == "" {
		return htmlSummary{}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return htmlSummary{Text: collapseSpace(fragment)}
	}

	return htmlSummary{
		Text:     collapseSpace(doc.Text()),
		HasPhoto: doc.Find("img, picture").Length() > 0,
		HasVideo: doc.Find(`video, iframe[src*="youtube"], iframe[src*="vimeo"]`).Length() > 0,
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
