package httpclient

import "testing"

func TestParseXMLTree(t *testing.T) {
	doc := []byte(`<feed><entry id="1"><title>First</title></entry><entry id="2"><title>Second</title></entry></feed>`)
	root, err := parseXML(doc)
	if err != nil {
		t.Fatalf("parseXML: %v", err)
	}
	if root.Tag != "feed" {
		t.Fatalf("expected root tag feed, got %q", root.Tag)
	}
	entries := root.Find("entry")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Attrs["id"] != "1" {
		t.Fatalf("expected id=1, got %q", entries[0].Attrs["id"])
	}
	titles := root.Find("title")
	if len(titles) != 2 || titles[0].TrimmedText() != "First" || titles[1].TrimmedText() != "Second" {
		t.Fatalf("unexpected titles: %#v", titles)
	}
}

func TestParseXMLEmptyDocumentErrors(t *testing.T) {
	if _, err := parseXML([]byte(``)); err == nil {
		t.Fatal("expected an error for an empty document")
	}
}

func TestParseXMLMalformedErrors(t *testing.T) {
	if _, err := parseXML([]byte(`<a><b></a>`)); err == nil {
		t.Fatal("expected an error for malformed xml")
	}
}
