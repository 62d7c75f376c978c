// Package storage stages uploaded documents between the form server and the
// delivery worker.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DocumentPrefix is the key prefix for staged criminal record documents.
const DocumentPrefix = "criminal-records/"

var ErrNotFound = errors.New("document not found")

// Object describes a stored document without its contents.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

type DocumentStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
}

// NewDocumentKey returns a fresh key for a sealed criminal record.
func NewDocumentKey() string {
	return DocumentPrefix + uuid.NewString() + ".pdf.age"
}

// Expired returns the objects last modified before cutoff.
func Expired(objects []Object, cutoff time.Time) []Object {
	var out []Object
	for _, o := range objects {
		if o.LastModified.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out
}
