package source

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
)

type stubRelational struct {
	content string
	name    string
	err     error
	calls   int
}

func (s *stubRelational) LookupDocument(ctx context.Context, id string) (string, string, error) {
	s.calls++
	if s.err != nil {
		return "", "", s.err
	}
	return s.content, s.name, nil
}

var _ RelationalStore = (*stubRelational)(nil)

type stubObjects struct {
	data  []byte
	err   error
	calls int
}

func (s *stubObjects) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

var _ ObjectStore = (*stubObjects)(nil)

func newTestAdapter(relational *stubRelational, objects *stubObjects) *Adapter {
	return NewAdapter(relational, objects, "documents", log.New(io.Discard, "", 0))
}

func TestFetchInvalidSourceContactsNoBackend(t *testing.T) {
	relational := &stubRelational{content: "hello", name: "doc.txt"}
	objects := &stubObjects{data: []byte("hello")}
	adapter := newTestAdapter(relational, objects)

	for _, src := range []string{"", "s3", "POSTGRES", "mongodb"} {
		_, err := adapter.Fetch(context.Background(), DocumentRef{ID: "C-100", Source: src})
		if !errors.Is(err, ErrInvalidSource) {
			t.Fatalf("source %q: expected ErrInvalidSource, got %v", src, err)
		}
	}

	if relational.calls != 0 || objects.calls != 0 {
		t.Fatalf("expected no backend calls, got relational=%d objects=%d", relational.calls, objects.calls)
	}
}

func TestFetchPostgresReturnsContentAndName(t *testing.T) {
	relational := &stubRelational{content: "hello", name: "c100.txt"}
	adapter := newTestAdapter(relational, &stubObjects{})

	doc, err := adapter.Fetch(context.Background(), DocumentRef{ID: "C-100", Source: SourcePostgres})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Content != "hello" || doc.Name != "c100.txt" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if relational.calls != 1 {
		t.Fatalf("expected one lookup, got %d", relational.calls)
	}
}

func TestFetchPostgresMissPropagatesNotFound(t *testing.T) {
	adapter := newTestAdapter(&stubRelational{err: ErrNotFound}, &stubObjects{})

	_, err := adapter.Fetch(context.Background(), DocumentRef{ID: "missing", Source: SourcePostgres})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchMinioDecodesTextObject(t *testing.T) {
	objects := &stubObjects{data: []byte("object body")}
	adapter := newTestAdapter(&stubRelational{}, objects)

	doc, err := adapter.Fetch(context.Background(), DocumentRef{ID: "contracts/c100.txt", Source: SourceMinio})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Content != "object body" {
		t.Fatalf("unexpected content: %q", doc.Content)
	}
	if doc.Name != "c100.txt" {
		t.Fatalf("expected display name from key base, got %q", doc.Name)
	}
}

func TestFetchMinioMissPropagatesNotFound(t *testing.T) {
	adapter := newTestAdapter(&stubRelational{}, &stubObjects{err: ErrNotFound})

	_, err := adapter.Fetch(context.Background(), DocumentRef{ID: "missing.txt", Source: SourceMinio})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchMinioRejectsBinaryObject(t *testing.T) {
	objects := &stubObjects{data: []byte{0xff, 0xfe, 0x00, 0x01}}
	adapter := newTestAdapter(&stubRelational{}, objects)

	if _, err := adapter.Fetch(context.Background(), DocumentRef{ID: "blob.bin", Source: SourceMinio}); err == nil {
		t.Fatal("expected error for non-UTF-8 object")
	}
}
