package gateway

import (
	"context"

	"github.com/rawgate/rawgate/pkg/kineticblob"
)

// KineticBackend adapts pkg/kineticblob to the gateway's Backend
// interface over a fixed set of drive targets.
type KineticBackend struct {
	targets             []kineticblob.Target
	blockSize           int
	downloadParallelism int
}

// NewKineticBackend wraps targets with the given block size and
// download parallelism factor (kineticblob's own defaults if zero).
func NewKineticBackend(targets []kineticblob.Target, blockSize, downloadParallelism int) *KineticBackend {
	return &KineticBackend{targets: targets, blockSize: blockSize, downloadParallelism: downloadParallelism}
}

func (b *KineticBackend) NewUpload(chunkID string) Uploader {
	return kineticUpload{kineticblob.NewUpload(chunkID, b.targets, b.blockSize)}
}

func (b *KineticBackend) NewDownload(chunkID string) Downloader {
	return kineticblob.NewDownload(chunkID, b.targets, b.downloadParallelism)
}

func (b *KineticBackend) NewRemoval(chunkID string) Remover {
	return kineticblob.NewRemoval(chunkID, b.targets)
}

// kineticUpload adapts kineticblob.Upload's (ManifestEntry, error)
// Commit return to the gateway's StreamResult.
type kineticUpload struct {
	*kineticblob.Upload
}

func (u kineticUpload) Commit(ctx context.Context) (StreamResult, error) {
	entry, err := u.Upload.Commit(ctx)
	if err != nil {
		return StreamResult{}, err
	}
	return StreamResult{Bytes: entry.Bytes, MD5: entry.MD5}, nil
}
