// Package gateway implements the HTTP front-end: a per-connection loop
// that reads PUT/GET/DELETE requests via pkg/httpcodec and drives the
// matching transaction (Upload/Download/Removal) on whichever storage
// back-end the chunk's target set resolves to, per spec.md §4.8.
package gateway

import "context"

// StreamResult is the {bytes, md5} pair every back-end reports once an
// Upload commits, independent of which back-end produced it.
type StreamResult struct {
	Bytes int64
	MD5   string
}

// Uploader is the three-phase Upload contract every back-end implements.
// SetXattr, when called, must happen before Prepare.
type Uploader interface {
	SetXattr(key, value string)
	Prepare(ctx context.Context) error
	Write(ctx context.Context, buf []byte) error
	Commit(ctx context.Context) (StreamResult, error)
	Abort(ctx context.Context) error
}

// Downloader is the three-phase Download contract every back-end
// implements. SetRange, when called, must happen after Prepare and
// before the first Read; a back-end fails it with status.ErrNoData if
// the requested range extends beyond the stored content's size.
type Downloader interface {
	Prepare(ctx context.Context) error
	SetRange(offset, size int64) error
	Read(ctx context.Context) ([]byte, error)
	IsEOF() bool
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// Remover is the three-phase Removal contract every back-end implements.
type Remover interface {
	Prepare(ctx context.Context) error
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// Backend constructs per-request transactions for one storage back-end,
// letting a target set mix local, RAWX, and Kinetic back-ends uniformly
// behind the same gateway front-end, per SPEC_FULL.md §4.10.
type Backend interface {
	NewUpload(chunkID string) Uploader
	NewDownload(chunkID string) Downloader
	NewRemoval(chunkID string) Remover
}
