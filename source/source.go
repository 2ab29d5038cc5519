package source

import (
	"context"
	"errors"
	"fmt"
	"log"
)

const (
	SourcePostgres = "postgres"
	SourceMinio    = "minio"
)

var (
	// ErrNotFound is returned when no document matches the identifier at the
	// selected backend.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidSource is returned for a source selector outside the known set.
	ErrInvalidSource = errors.New("invalid source specified (must be 'postgres' or 'minio')")
)

// DocumentRef identifies a document at its origin.
type DocumentRef struct {
	ID     string
	Source string
}

// FetchedDocument carries raw document text and a display name for upload.
type FetchedDocument struct {
	Content string
	Name    string
}

// RelationalStore looks up document content and name by identifier.
type RelationalStore interface {
	LookupDocument(ctx context.Context, id string) (content, name string, err error)
}

// ObjectStore fetches a raw object by bucket and key.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// Adapter resolves a DocumentRef against one of the two storage backends.
type Adapter struct {
	relational RelationalStore
	objects    ObjectStore
	bucket     string
	logger     *log.Logger
}

func NewAdapter(relational RelationalStore, objects ObjectStore, bucket string, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.Default()
	}

	return &Adapter{
		relational: relational,
		objects:    objects,
		bucket:     bucket,
		logger:     logger,
	}
}

func (a *Adapter) Fetch(ctx context.Context, ref DocumentRef) (FetchedDocument, error) {
	switch ref.Source {
	case SourcePostgres:
		return a.fetchRelational(ctx, ref.ID)
	case SourceMinio:
		return a.fetchObject(ctx, ref.ID)
	default:
		return FetchedDocument{}, fmt.Errorf("source %q: %w", ref.Source, ErrInvalidSource)
	}
}

func (a *Adapter) fetchRelational(ctx context.Context, id string) (FetchedDocument, error) {
	if a.relational == nil {
		return FetchedDocument{}, fmt.Errorf("relational store is not configured")
	}

	content, name, err := a.relational.LookupDocument(ctx, id)
	if err != nil {
		return FetchedDocument{}, fmt.Errorf("lookup document %s: %w", id, err)
	}

	a.logger.Printf("fetched document %s (%s) from postgres", id, name)
	return FetchedDocument{Content: content, Name: name}, nil
}

func (a *Adapter) fetchObject(ctx context.Context, key string) (FetchedDocument, error) {
	if a.objects == nil {
		return FetchedDocument{}, fmt.Errorf("object store is not configured")
	}

	data, err := a.objects.GetObject(ctx, a.bucket, key)
	if err != nil {
		return FetchedDocument{}, fmt.Errorf("get object %s: %w", key, err)
	}

	doc, err := decodeObject(key, data)
	if err != nil {
		return FetchedDocument{}, fmt.Errorf("decode object %s: %w", key, err)
	}

	a.logger.Printf("fetched object %s (%d bytes) from minio", key, len(data))
	return doc, nil
}
