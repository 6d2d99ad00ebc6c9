// Package filestore stores raw document bytes and generated report artifacts.
// The production implementation writes to Google Cloud Storage; an in-memory
// implementation backs tests.
package filestore

import "context"

// Store persists opaque blobs addressed by URI.
type Store interface {
	// Save writes content under the given object name and returns the URI
	// that Fetch accepts.
	Save(ctx context.Context, objectName string, content []byte) (string, error)
	// Fetch reads the blob bytes back by URI.
	Fetch(ctx context.Context, uri string) ([]byte, error)
	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, uri string) error
}
