package gateway

import (
	"context"

	"github.com/rawgate/rawgate/pkg/rawxblob"
)

// RawxBackend adapts pkg/rawxblob.Backend to the gateway's Backend
// interface.
type RawxBackend struct {
	client *rawxblob.Backend
}

// NewRawxBackend wraps client.
func NewRawxBackend(client *rawxblob.Backend) *RawxBackend {
	return &RawxBackend{client: client}
}

func (b *RawxBackend) NewUpload(chunkID string) Uploader {
	return rawxUpload{b.client.NewUpload(chunkID)}
}

func (b *RawxBackend) NewDownload(chunkID string) Downloader {
	return b.client.NewDownload(chunkID)
}

func (b *RawxBackend) NewRemoval(chunkID string) Remover {
	return b.client.NewRemoval(chunkID)
}

// rawxUpload adapts rawxblob.Upload's (UploadResult, error) Commit
// return to the gateway's StreamResult.
type rawxUpload struct {
	*rawxblob.Upload
}

func (u rawxUpload) Commit(ctx context.Context) (StreamResult, error) {
	result, err := u.Upload.Commit(ctx)
	if err != nil {
		return StreamResult{}, err
	}
	return StreamResult{Bytes: result.Bytes, MD5: result.MD5}, nil
}
