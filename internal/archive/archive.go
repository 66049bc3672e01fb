// Package archive persists raw listing-page snapshots so extractions
// can be replayed after a selector-profile change.
package archive

import "context"

// Provider abstracts the blob backend for page snapshots.
type Provider interface {
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOp discards snapshots; used when archiving is disabled.
type NoOp struct{}

// Save does nothing.
func (NoOp) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
