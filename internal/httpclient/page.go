package httpclient

import (
	"bytes"
	"context"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// MaxPageBytes bounds how much of a response body tools read.
const MaxPageBytes = 5 << 20

// Page is a fetched response with its body read and, for HTML, parsed.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Header     http.Header
	Body       []byte
	Doc        *goquery.Document // nil when the body is not parseable
}

// Fetch GETs rawURL with retries and parses the body as HTML.
func Fetch(ctx context.Context, client *http.Client, rawURL string, retries int, header http.Header) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := DoWithRetry(ctx, client, req, retries)
	if err != nil {
		return nil, err
	}
	defer CloseBody(resp)

	body, err := ReadBody(resp, MaxPageBytes)
	if err != nil {
		return nil, err
	}

	p := &Page{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		p.Doc = doc
	}
	return p, nil
}

// Text returns the body as a string.
func (p *Page) Text() string { return string(p.Body) }
