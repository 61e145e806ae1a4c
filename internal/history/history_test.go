package history

import (
	"net/url"
	"path/filepath"
	"testing"

	"github.com/fetchdsl/fetchdsl/internal/httpclient"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := openTestStore(t)
	run, err := s.BeginRun("smoke")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("expected a nonzero run ID after insert")
	}
}

func TestBeginRunAndRecordResponse(t *testing.T) {
	s := openTestStore(t)
	run, err := s.BeginRun("job-1")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	req, err := httpclient.NewRequest("https://example.com/a")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	u, _ := url.Parse("https://example.com/a")
	resp := httpclient.NewResponse(u, 200, "OK", []byte("hello"), req)

	sink := s.Sink(run)
	if err := sink.RecordResponse(resp); err != nil {
		t.Fatalf("RecordResponse: %v", err)
	}

	records, err := s.Responses(run)
	if err != nil {
		t.Fatalf("Responses: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.URL != "https://example.com/a" {
		t.Fatalf("unexpected URL %q", rec.URL)
	}
	if rec.Status != 200 {
		t.Fatalf("expected status 200, got %d", rec.Status)
	}
	if rec.BodySize != len("hello") {
		t.Fatalf("expected body size %d, got %d", len("hello"), rec.BodySize)
	}
}

func TestResponsesReturnsInOrder(t *testing.T) {
	s := openTestStore(t)
	run, err := s.BeginRun("job-2")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	sink := s.Sink(run)

	req, _ := httpclient.NewRequest("https://example.com/a")
	u, _ := url.Parse("https://example.com/a")
	for i := 0; i < 3; i++ {
		resp := httpclient.NewResponse(u, 200, "OK", nil, req)
		if err := sink.RecordResponse(resp); err != nil {
			t.Fatalf("RecordResponse: %v", err)
		}
	}

	records, err := s.Responses(run)
	if err != nil {
		t.Fatalf("Responses: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].ID <= records[i-1].ID {
			t.Fatalf("expected records oldest first, got ID %d after ID %d", records[i].ID, records[i-1].ID)
		}
	}
}

func TestResponsesScopedToRun(t *testing.T) {
	s := openTestStore(t)
	runA, _ := s.BeginRun("a")
	runB, _ := s.BeginRun("b")

	req, _ := httpclient.NewRequest("https://example.com/a")
	u, _ := url.Parse("https://example.com/a")
	respA := httpclient.NewResponse(u, 200, "OK", nil, req)
	if err := s.Sink(runA).RecordResponse(respA); err != nil {
		t.Fatalf("RecordResponse: %v", err)
	}

	records, err := s.Responses(runB)
	if err != nil {
		t.Fatalf("Responses: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected 0 records for an unrelated run, got %d", len(records))
	}
}
