// Package corpus defines the document corpus contract and its sources. A
// source yields immutable text blobs with stable path identifiers; the engine
// treats it as read-only and pulls a full snapshot on every rebuild.
package corpus

import "context"

// Document is one documentation entry. ID is a stable path string (the
// service-partitioned relative path of the doc) and survives rebuilds.
type Document struct {
	ID      string
	Service string
	Text    string
}

// Source yields the full corpus snapshot on demand.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// StaticSource is a fixed in-memory corpus, mainly for tests.
type StaticSource []Document

func (s StaticSource) Documents(ctx context.Context) ([]Document, error) {
	docs := make([]Document, len(s))
	copy(docs, s)
	return docs, nil
}
