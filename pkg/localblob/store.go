// Package localblob implements the local filesystem back-end: a chunk
// is one file under a hashed docroot, committed atomically via
// write-to-temp-then-rename, with its xattr manifest carried in a JSON
// sidecar file (portable across filesystems that don't expose real
// extended attributes).
package localblob

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rawgate/rawgate/pkg/status"
	"github.com/rawgate/rawgate/pkg/txstate"
)

// Config configures the local filesystem back-end.
type Config struct {
	// DocRoot is the root directory chunks are stored under.
	DocRoot string
	// HashDepth is the number of hashed directory levels derived from
	// the chunk id's hash, spreading chunks across subdirectories so no
	// single directory holds every chunk.
	HashDepth int
	// HashWidth is the number of hex characters per directory level,
	// per spec.md §6's "tokens of W hex chars".
	HashWidth int
	DirMode   os.FileMode
	FileMode  os.FileMode
}

func (c Config) withDefaults() Config {
	if c.HashDepth <= 0 {
		c.HashDepth = 2
	}
	if c.HashWidth <= 0 {
		c.HashWidth = 2
	}
	if c.DirMode == 0 {
		c.DirMode = 0o755
	}
	if c.FileMode == 0 {
		c.FileMode = 0o644
	}
	return c
}

// Backend is the local filesystem back-end.
type Backend struct {
	cfg Config
}

// New constructs a Backend rooted at cfg.DocRoot, creating it if absent.
func New(cfg Config) (*Backend, error) {
	cfg = cfg.withDefaults()
	if cfg.DocRoot == "" {
		return nil, fmt.Errorf("localblob: DocRoot is required")
	}
	if err := os.MkdirAll(cfg.DocRoot, cfg.DirMode); err != nil {
		return nil, err
	}
	return &Backend{cfg: cfg}, nil
}

// manifestSidecar is the JSON object written alongside a committed
// chunk, playing the role of the Kinetic back-end's "C-#" xattr
// manifest for a back-end with no real extended-attribute support.
type manifestSidecar struct {
	Bytes  int64             `json:"bytes"`
	MD5    string            `json:"md5"`
	Xattrs map[string]string `json:"xattrs,omitempty"`
}

// chunkPath hashes chunkID into HashDepth nested directory levels of
// HashWidth hex characters each before the final filename, so a
// docroot with millions of chunks never puts them all in one directory.
func (b *Backend) chunkPath(chunkID string) string {
	sum := md5.Sum([]byte(chunkID))
	hexSum := fmt.Sprintf("%x", sum)
	width := b.cfg.HashWidth
	parts := make([]string, 0, b.cfg.HashDepth+1)
	for i := 0; i < b.cfg.HashDepth && width*i+width <= len(hexSum); i++ {
		parts = append(parts, hexSum[width*i:width*i+width])
	}
	parts = append(parts, chunkID)
	return filepath.Join(append([]string{b.cfg.DocRoot}, parts...)...)
}

func (b *Backend) sidecarPath(chunkID string) string {
	return b.chunkPath(chunkID) + ".manifest.json"
}

func (b *Backend) tempPath(chunkID string) string {
	return b.chunkPath(chunkID) + fmt.Sprintf(".tmp-%d", os.Getpid())
}

// exists reports whether chunkID is already committed: a committed
// chunk has both its data file and its sidecar manifest present.
func (b *Backend) exists(chunkID string) bool {
	if _, err := os.Stat(b.sidecarPath(chunkID)); err != nil {
		return false
	}
	_, err := os.Stat(b.chunkPath(chunkID))
	return err == nil
}

// Upload is the local-filesystem Upload transaction: write to a
// temporary file, then commit by writing the sidecar manifest and
// renaming the temp file into place, satisfying the same Init ->
// Prepared -> Done lifecycle every back-end implements.
type Upload struct {
	txstate.Machine

	backend *Backend
	chunkID string

	file   *os.File
	hasher interface {
		Write([]byte) (int, error)
		Sum([]byte) []byte
	}
	bytes  int64
	xattrs map[string]string
}

// SetXattr records one xattr key/value to be stored in the chunk's
// sidecar manifest at Commit. Must be called before Prepare.
func (u *Upload) SetXattr(key, value string) {
	if u.xattrs == nil {
		u.xattrs = make(map[string]string)
	}
	u.xattrs[key] = value
}

// NewUpload constructs an Upload for chunkID.
func (b *Backend) NewUpload(chunkID string) *Upload {
	return &Upload{backend: b, chunkID: chunkID, hasher: md5.New()}
}

// Prepare fails Already if the chunk is already committed, otherwise
// opens the temporary file that Write appends to.
func (u *Upload) Prepare(ctx context.Context) error {
	if err := u.Machine.EnterPrepared(); err != nil {
		return err
	}
	if u.backend.exists(u.chunkID) {
		_ = u.Machine.EnterDone()
		return status.ErrAlreadyExists
	}

	dir := filepath.Dir(u.backend.chunkPath(u.chunkID))
	if err := os.MkdirAll(dir, u.backend.cfg.DirMode); err != nil {
		_ = u.Machine.EnterDone()
		return status.Wrap(status.InternalError, status.CodeInternal, "mkdir failed", err)
	}

	f, err := os.OpenFile(u.backend.tempPath(u.chunkID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, u.backend.cfg.FileMode)
	if err != nil {
		_ = u.Machine.EnterDone()
		return status.Wrap(status.InternalError, status.CodeInternal, "open temp file failed", err)
	}
	u.file = f
	return nil
}

// Write appends buf to the temporary file and the running checksum.
func (u *Upload) Write(ctx context.Context, buf []byte) error {
	if err := u.Machine.RequirePrepared(); err != nil {
		return err
	}
	if _, err := u.file.Write(buf); err != nil {
		return status.Wrap(status.InternalError, status.CodeInternal, "write failed", err)
	}
	u.hasher.Write(buf)
	u.bytes += int64(len(buf))
	return nil
}

// Commit closes and syncs the temp file, writes the sidecar manifest,
// then renames the temp file into place — the rename is the atomic
// commit point: a reader never observes a partially-written chunk.
func (u *Upload) Commit(ctx context.Context) (manifestSidecar, error) {
	if err := u.Machine.RequirePrepared(); err != nil {
		return manifestSidecar{}, err
	}

	if err := u.file.Sync(); err != nil {
		_ = u.file.Close()
		_ = u.Machine.EnterDone()
		return manifestSidecar{}, status.Wrap(status.InternalError, status.CodeInternal, "fsync failed", err)
	}
	if err := u.file.Close(); err != nil {
		_ = u.Machine.EnterDone()
		return manifestSidecar{}, status.Wrap(status.InternalError, status.CodeInternal, "close failed", err)
	}

	entry := manifestSidecar{Bytes: u.bytes, MD5: fmt.Sprintf("%x", u.hasher.Sum(nil)), Xattrs: u.xattrs}
	sidecarBytes, err := json.Marshal(entry)
	if err != nil {
		_ = u.Machine.EnterDone()
		return manifestSidecar{}, status.Wrap(status.InternalError, status.CodeInternal, "manifest encode failed", err)
	}
	if err := os.WriteFile(u.backend.sidecarPath(u.chunkID), sidecarBytes, u.backend.cfg.FileMode); err != nil {
		_ = u.Machine.EnterDone()
		return manifestSidecar{}, status.Wrap(status.InternalError, status.CodeInternal, "sidecar write failed", err)
	}
	if err := os.Rename(u.backend.tempPath(u.chunkID), u.backend.chunkPath(u.chunkID)); err != nil {
		_ = u.Machine.EnterDone()
		return manifestSidecar{}, status.Wrap(status.InternalError, status.CodeInternal, "rename failed", err)
	}

	if err := u.Machine.EnterDone(); err != nil {
		return manifestSidecar{}, err
	}
	return entry, nil
}

// Abort removes the temporary file without committing anything.
func (u *Upload) Abort(ctx context.Context) error {
	if err := u.Machine.RequireNotDone(); err != nil {
		return err
	}
	if u.file != nil {
		_ = u.file.Close()
		_ = os.Remove(u.backend.tempPath(u.chunkID))
	}
	return u.Machine.EnterDone()
}

// Download is the local-filesystem Download transaction: Prepare opens
// the committed file for reading, Read streams fixed-size chunks from
// it.
type Download struct {
	txstate.Machine

	backend   *Backend
	chunkID   string
	file      *os.File
	chunkSize int
	eof       bool

	size      int64
	started   bool
	ranged    bool
	remaining int64
}

// NewDownload constructs a Download for chunkID, reading chunkSize
// bytes at a time (32KiB if zero).
func (b *Backend) NewDownload(chunkID string, chunkSize int) *Download {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	return &Download{backend: b, chunkID: chunkID, chunkSize: chunkSize}
}

// Prepare fails NotFound if the chunk is not committed.
func (d *Download) Prepare(ctx context.Context) error {
	if err := d.Machine.EnterPrepared(); err != nil {
		return err
	}
	if !d.backend.exists(d.chunkID) {
		_ = d.Machine.EnterDone()
		return status.ErrNotFound
	}
	f, err := os.Open(d.backend.chunkPath(d.chunkID))
	if err != nil {
		_ = d.Machine.EnterDone()
		return status.Wrap(status.InternalError, status.CodeInternal, "open failed", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		_ = d.Machine.EnterDone()
		return status.Wrap(status.InternalError, status.CodeInternal, "stat failed", err)
	}
	d.file = f
	d.size = info.Size()
	return nil
}

// SetRange narrows the Download to [offset, offset+size), seeking the
// open file to offset. Allowed only in Prepared before the first Read,
// per spec.md §4.4.
func (d *Download) SetRange(offset, size int64) error {
	if err := d.Machine.RequirePrepared(); err != nil {
		return err
	}
	if d.started {
		return status.New(status.InternalError, status.CodeInternal, "set_range called after read")
	}
	if offset < 0 || size < 0 {
		return status.New(status.Forbidden, status.CodeForbiddenRange, "negative range")
	}
	if offset+size > d.size {
		return status.ErrNoData
	}
	if _, err := d.file.Seek(offset, io.SeekStart); err != nil {
		return status.Wrap(status.InternalError, status.CodeInternal, "seek failed", err)
	}
	d.ranged = true
	d.remaining = size
	return nil
}

// Read returns the next chunk of bytes, or a nil slice at EOF.
func (d *Download) Read(ctx context.Context) ([]byte, error) {
	if err := d.Machine.RequirePrepared(); err != nil {
		return nil, err
	}
	d.started = true
	if d.ranged && d.remaining <= 0 {
		d.eof = true
		return nil, nil
	}
	want := d.chunkSize
	if d.ranged && int64(want) > d.remaining {
		want = int(d.remaining)
	}
	buf := make([]byte, want)
	n, err := d.file.Read(buf)
	if err == io.EOF {
		d.eof = true
		return nil, nil
	}
	if err != nil {
		return nil, status.Wrap(status.InternalError, status.CodeInternal, "read failed", err)
	}
	if d.ranged {
		d.remaining -= int64(n)
	}
	return buf[:n], nil
}

// IsEOF reports whether the most recent Read reached end of file or, for
// a ranged Download, whether the requested range has been fully
// delivered.
func (d *Download) IsEOF() bool {
	if d.ranged && d.remaining <= 0 {
		return true
	}
	return d.eof
}

// Commit closes the file without mutating anything else.
func (d *Download) Commit(ctx context.Context) error {
	if d.file != nil {
		_ = d.file.Close()
	}
	return d.Machine.EnterDone()
}

// Abort closes the file without mutating anything else.
func (d *Download) Abort(ctx context.Context) error {
	if d.file != nil {
		_ = d.file.Close()
	}
	return d.Machine.EnterDone()
}

// Removal is the local-filesystem Removal transaction.
type Removal struct {
	txstate.Machine

	backend *Backend
	chunkID string
}

// NewRemoval constructs a Removal for chunkID.
func (b *Backend) NewRemoval(chunkID string) *Removal {
	return &Removal{backend: b, chunkID: chunkID}
}

// Prepare fails NotFound if the chunk is not committed.
func (r *Removal) Prepare(ctx context.Context) error {
	if err := r.Machine.EnterPrepared(); err != nil {
		return err
	}
	if !r.backend.exists(r.chunkID) {
		_ = r.Machine.EnterDone()
		return status.ErrNotFound
	}
	return nil
}

// Commit removes both the chunk data file and its sidecar manifest.
func (r *Removal) Commit(ctx context.Context) error {
	if err := r.Machine.RequirePrepared(); err != nil {
		return err
	}
	if err := os.Remove(r.backend.chunkPath(r.chunkID)); err != nil && !os.IsNotExist(err) {
		_ = r.Machine.EnterDone()
		return status.Wrap(status.InternalError, status.CodeInternal, "remove failed", err)
	}
	if err := os.Remove(r.backend.sidecarPath(r.chunkID)); err != nil && !os.IsNotExist(err) {
		_ = r.Machine.EnterDone()
		return status.Wrap(status.InternalError, status.CodeInternal, "remove sidecar failed", err)
	}
	return r.Machine.EnterDone()
}

// Abort releases the transaction without deleting anything.
func (r *Removal) Abort(ctx context.Context) error {
	if err := r.Machine.RequireNotDone(); err != nil {
		return err
	}
	return r.Machine.EnterDone()
}
