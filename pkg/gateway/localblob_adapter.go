package gateway

import (
	"context"

	"github.com/rawgate/rawgate/pkg/localblob"
)

// LocalBackend adapts pkg/localblob.Backend to the gateway's Backend
// interface.
type LocalBackend struct {
	store         *localblob.Backend
	downloadChunk int
}

// NewLocalBackend wraps store, reading downloadChunkSize bytes per
// Download.Read call (localblob's own default if zero).
func NewLocalBackend(store *localblob.Backend, downloadChunkSize int) *LocalBackend {
	return &LocalBackend{store: store, downloadChunk: downloadChunkSize}
}

func (b *LocalBackend) NewUpload(chunkID string) Uploader {
	return localUpload{b.store.NewUpload(chunkID)}
}

func (b *LocalBackend) NewDownload(chunkID string) Downloader {
	return b.store.NewDownload(chunkID, b.downloadChunk)
}

func (b *LocalBackend) NewRemoval(chunkID string) Remover {
	return b.store.NewRemoval(chunkID)
}

// localUpload adapts localblob.Upload's (manifestSidecar, error) Commit
// return to the gateway's StreamResult.
type localUpload struct {
	*localblob.Upload
}

func (u localUpload) Commit(ctx context.Context) (StreamResult, error) {
	entry, err := u.Upload.Commit(ctx)
	if err != nil {
		return StreamResult{}, err
	}
	return StreamResult{Bytes: entry.Bytes, MD5: entry.MD5}, nil
}
