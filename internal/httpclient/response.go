package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/encoding/htmlindex"
)

// Response is an immutable record of one materialized HTTP exchange (or
// the transport failure that stood in for one). Derived views are
// memoized with small bounded LRU caches, since branch dispatch routinely
// calls the same accessor more than once per response.
type Response struct {
	url     *url.URL
	status  int
	reason  string
	content []byte
	request Request

	mu        sync.Mutex
	textCache *lru.Cache[string, string]
	jsonCache *lru.Cache[struct{}, any]
	htmlCache *lru.Cache[struct{}, *goquery.Document]
	xmlCache  *lru.Cache[struct{}, *XMLNode]
}

// NewResponse constructs a successful Response.
func NewResponse(u *url.URL, status int, reason string, content []byte, req Request) *Response {
	return newResponse(u, status, reason, content, req)
}

// NewFailureResponse constructs the Response standing in for a transport
// failure: status -1, reason describing the error, empty content.
func NewFailureResponse(reason string, req Request) *Response {
	return newResponse(&url.URL{}, -1, reason, nil, req)
}

func newResponse(u *url.URL, status int, reason string, content []byte, req Request) *Response {
	tc, _ := lru.New[string, string](8)
	jc, _ := lru.New[struct{}, any](2)
	hc, _ := lru.New[struct{}, *goquery.Document](2)
	xc, _ := lru.New[struct{}, *XMLNode](2)
	return &Response{
		url: u, status: status, reason: reason, content: content, request: req,
		textCache: tc, jsonCache: jc, htmlCache: hc, xmlCache: xc,
	}
}

func (r *Response) URL() *url.URL      { return r.url }
func (r *Response) Status() int        { return r.status }
func (r *Response) Reason() string     { return r.reason }
func (r *Response) Content() []byte    { return r.content }
func (r *Response) Request() Request   { return r.request }
func (r *Response) Meta() map[string]any { return r.request.Meta }

func (r *Response) String() string {
	return fmt.Sprintf("<Response %d %s>", r.status, r.url)
}

// Text decodes the response content as text. encoding is a charset name
// (e.g. "iso-8859-1"); nil defaults to UTF-8 (this system does not sniff
// the charset — see SPEC_FULL.md §1 non-goals).
func (r *Response) Text(encoding *string) (string, error) {
	key := "utf-8"
	if encoding != nil {
		key = strings.ToLower(*encoding)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.textCache.Get(key); ok {
		return v, nil
	}
	var out string
	if key == "utf-8" {
		out = string(r.content)
	} else {
		enc, err := htmlindex.Get(key)
		if err != nil {
			return "", fmt.Errorf("httpclient: unknown encoding %q: %w", key, err)
		}
		decoded, err := enc.NewDecoder().Bytes(r.content)
		if err != nil {
			return "", fmt.Errorf("httpclient: decoding %q content: %w", key, err)
		}
		out = string(decoded)
	}
	r.textCache.Add(key, out)
	return out, nil
}

// JSON unmarshals the response content into a generic value.
func (r *Response) JSON() (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.jsonCache.Get(struct{}{}); ok {
		return v, nil
	}
	var v any
	if err := json.Unmarshal(r.content, &v); err != nil {
		return nil, fmt.Errorf("httpclient: decoding json: %w", err)
	}
	r.jsonCache.Add(struct{}{}, v)
	return v, nil
}

// HTML parses the response content as HTML into a queryable document.
func (r *Response) HTML() (*goquery.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.htmlCache.Get(struct{}{}); ok {
		return v, nil
	}
	doc, err := goquery.NewDocumentFromReader(newByteReader(r.content))
	if err != nil {
		return nil, fmt.Errorf("httpclient: parsing html: %w", err)
	}
	r.htmlCache.Add(struct{}{}, doc)
	return doc, nil
}

// XML parses the response content as XML into a minimal, queryable tree.
func (r *Response) XML() (*XMLNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.xmlCache.Get(struct{}{}); ok {
		return v, nil
	}
	node, err := parseXML(r.content)
	if err != nil {
		return nil, fmt.Errorf("httpclient: parsing xml: %w", err)
	}
	r.xmlCache.Add(struct{}{}, node)
	return node, nil
}

func newByteReader(b []byte) io.Reader { return strings.NewReader(string(b)) }
