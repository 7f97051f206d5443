package browser

import (
	"bytes"
	"fmt"
	"net/url"

	readability "github.com/go-shiori/go-readability"
)

// Article holds the readable content of an entry's description page.
type Article struct {
	Title       string
	Byline      string
	Content     string // cleaned HTML
	TextContent string
	SiteName    string
	URI         string
}

// Extract reduces a fetched page to its readable article. Non-HTML
// responses are wrapped as preformatted text.
func Extract(result *FetchResult) (*Article, error) {
	if !IsHTML(result.ContentType) {
		return &Article{
			Title:       result.FinalURI,
			Content:     "<pre>" + string(result.Body) + "</pre>",
			TextContent: string(result.Body),
			URI:         result.FinalURI,
		}, nil
	}

	pageURL, err := url.Parse(result.FinalURI)
	if err != nil {
		return nil, fmt.Errorf("parsing URI: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(result.Body), pageURL)
	if err != nil {
		return nil, fmt.Errorf("extracting article: %w", err)
	}

	return &Article{
		Title:       article.Title,
		Byline:      article.Byline,
		Content:     article.Content,
		TextContent: article.TextContent,
		SiteName:    article.SiteName,
		URI:         result.FinalURI,
	}, nil
}
