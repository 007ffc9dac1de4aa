package forum

import (
	"bytes"
	"fmt"
	"log/slog"

	"codeberg.org/readeck/go-readability"
	"golang.org/x/net/html"
)

// ContentExtractor pulls the main post out of a full topic page.
type ContentExtractor struct{}

func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

func (e *ContentExtractor) Run(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	if article.Node == nil {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, article.Node); err != nil {
		return "", fmt.Errorf("failed to render extracted content: %w", err)
	}

	content := buf.String()
	if content == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Content extracted successfully", "content_length", len(content))

	return content, nil
}
