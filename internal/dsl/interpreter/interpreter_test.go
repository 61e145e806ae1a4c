package interpreter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fetchdsl/fetchdsl/internal/bridge"
	"github.com/fetchdsl/fetchdsl/internal/evaluator"
	"github.com/fetchdsl/fetchdsl/internal/httpclient"
)

func TestRunEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"title":"hi"}`))
	}))
	defer srv.Close()

	settings := httpclient.DefaultSettings()
	settings.SleepPerRequest = 0
	client := httpclient.NewClient(settings)
	defer client.Close(context.Background())

	interp := New(client, bridge.New())

	source := "let page = get from url\n" +
		"then send\n" +
		"then wait\n" +
		"then process whose status equals '200' as json with {{\n" +
		"  return obj.title\n" +
		"}}"

	result, err := interp.Run(context.Background(), source, evaluator.Env{"url": srv.URL}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result != "hi" {
		t.Fatalf("got %v, want %q", result, "hi")
	}
}

func TestRunSurfacesParseErrors(t *testing.T) {
	settings := httpclient.DefaultSettings()
	client := httpclient.NewClient(settings)
	defer client.Close(context.Background())

	interp := New(client, bridge.New())
	_, err := interp.Run(context.Background(), "get from", nil, nil)
	if err == nil {
		t.Fatal("expected a parse error for a missing url")
	}
}
