// Package clipboard abstracts the desktop clipboard as an external
// capability addressed by MIME type, and tracks per-channel change state.
package clipboard

import "context"

// Capability reads and writes the system clipboard.
//
// Read returns empty bytes (and no error) when nothing is offered for mime.
// Implementations bound every call with a timeout; expiry is reported as an
// error the caller treats as transient.
type Capability interface {
	// CheckPrerequisites fails when the capability cannot work at all in
	// this session.
	CheckPrerequisites(ctx context.Context) error
	// Types lists the MIME types currently offered, in offer order.
	Types(ctx context.Context) ([]string, error)
	Read(ctx context.Context, mime string) ([]byte, error)
	Write(ctx context.Context, mime string, data []byte) error
}
