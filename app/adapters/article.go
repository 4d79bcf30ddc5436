package adapters

import (
	"bytes"
	"fmt"
	"log/slog"

	"codeberg.org/readeck/go-readability"
)

// ArticleExtractor pulls the main article out of a web page.
type ArticleExtractor struct{}

func NewArticleExtractor() *ArticleExtractor {
	return &ArticleExtractor{}
}

func (e *ArticleExtractor) Run(data []byte) (htmlSummary, error) {
	if len(data) == 0 {
		return htmlSummary{}, fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err != nil {
		return htmlSummary{}, fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Content == "" {
		return htmlSummary{}, fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Article extracted",
		"title", article.Title,
		"content_length", len(article.Content))

	return inspectHTML(article.Content), nil
}
