package httpclient

import "testing"

func TestNewRequestDefaultsToGET(t *testing.T) {
	r, err := NewRequest("https://example.com")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if r.Method != MethodGET {
		t.Fatalf("expected default method GET, got %s", r.Method)
	}
}

func TestNewRequestRejectsInvalidURL(t *testing.T) {
	if _, err := NewRequest("://bad"); err == nil {
		t.Fatal("expected an error for an invalid url")
	}
}

func TestNewRequestRejectsMultipleBodyFields(t *testing.T) {
	_, err := NewRequest("https://example.com",
		WithJSON(map[string]any{"a": 1}),
		WithText("hello"),
	)
	if err == nil {
		t.Fatal("expected an error when more than one body field is set")
	}
}

func TestWithHeaderAppends(t *testing.T) {
	r, err := NewRequest("https://example.com", WithHeader("X-Test", "a"), WithHeader("X-Test", "b"))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if got := r.Headers["X-Test"]; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected headers: %#v", r.Headers)
	}
}

func TestRequestHost(t *testing.T) {
	r, err := NewRequest("https://example.com:8443/path")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if got := r.Host(); got != "example.com" {
		t.Fatalf("Host() = %q, want %q", got, "example.com")
	}
}

func TestRequestHostOnUnparsableURL(t *testing.T) {
	r := Request{URL: "://bad"}
	if got := r.Host(); got != "" {
		t.Fatalf("Host() = %q, want empty string", got)
	}
}

func TestWithMetaAccumulates(t *testing.T) {
	r, err := NewRequest("https://example.com", WithMeta("label", "a"), WithMeta("n", 2))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if r.Meta["label"] != "a" || r.Meta["n"] != 2 {
		t.Fatalf("unexpected meta: %#v", r.Meta)
	}
}
