// Package objstore stores raw extracts and run manifests.
//
// Objects follow a fixed prefix layout (see layout.go): extractors write under
// raw/, manifests under manifests/, and the loader may move loaded files to
// processed/. Google Cloud Storage is the production backend; FS mirrors the
// layout on local disk for development runs.
package objstore

import (
	"context"
	"errors"
)

// ErrNotExist is returned when an object is missing.
var ErrNotExist = errors.New("objstore: object does not exist")

// Object carries the attributes written with an object.
type Object struct {
	ContentType string
	Metadata    map[string]string
}

// Store is an object store rooted at a single bucket or directory.
type Store interface {
	// Put writes data under name and returns the object URI.
	Put(ctx context.Context, name string, data []byte, obj Object) (string, error)
	// Get reads an object. Missing objects return ErrNotExist.
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns object names that start with prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Move copies src to dst and deletes src.
	Move(ctx context.Context, src, dst string) error
	// URI returns the addressable URI of name.
	URI(name string) string
	// Name is the inverse of URI. It reports false for URIs of other stores.
	Name(uri string) (string, bool)
	Close() error
}

var (
	_ Store = (*GCS)(nil)
	_ Store = (*FS)(nil)
)
