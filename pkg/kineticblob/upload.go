package kineticblob

import (
	"context"
	"crypto/md5"
	"fmt"
	"hash"

	"github.com/rawgate/rawgate/internal/sched"
	"github.com/rawgate/rawgate/pkg/kinetic/client"
	"github.com/rawgate/rawgate/pkg/status"
	"github.com/rawgate/rawgate/pkg/txstate"
)

// Upload stripes a written byte stream into BlockSize blocks across the
// target drives, in round-robin order, sealed by a manifest key, per
// spec.md §4.7's "Upload striper".
type Upload struct {
	txstate.Machine

	chunkID   string
	targets   []Target
	blockSize int

	buf       []byte
	nextDrive int
	ops       []*pendingOp
	hasher    hash.Hash
	bytes     int64
	xattrs    map[string]string
}

type pendingOp struct {
	key  string
	sync *client.Sync
}

// NewUpload constructs an Upload over targets with the given block size
// (DefaultBlockSize if zero).
func NewUpload(chunkID string, targets []Target, blockSize int) *Upload {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	h := md5.New()
	return &Upload{
		chunkID:   chunkID,
		targets:   targets,
		blockSize: blockSize,
		hasher:    h,
	}
}

// Prepare performs the pre-check: a parallel GetKeyRange(C-#, C-#) across
// all drives. If any drive already has the manifest key, the chunk is
// already committed and Prepare fails Already. If any drive errors,
// Prepare fails NetworkError.
func (u *Upload) Prepare(ctx context.Context) error {
	if err := u.Machine.EnterPrepared(); err != nil {
		return err
	}

	mk := []byte(manifestKey(u.chunkID))
	type result struct {
		found bool
		err   error
	}
	results := make(chan result, len(u.targets))
	for _, t := range u.targets {
		t := t
		go func() {
			s := doGetKeyRange(t.Drive, mk, mk, 1)
			err := s.Wait(ctx)
			if err != nil {
				results <- result{err: err}
				return
			}
			found := false
			if reply := s.Exchange().Reply; reply != nil && reply.Body != nil && reply.Body.Range != nil {
				found = len(reply.Body.Range.Keys) > 0
			}
			results <- result{found: found}
		}()
	}

	var anyErr error
	anyFound := false
	for range u.targets {
		r := <-results
		if r.err != nil {
			anyErr = r.err
		}
		if r.found {
			anyFound = true
		}
	}

	if anyFound {
		_ = u.Machine.EnterDone()
		return status.ErrAlreadyExists
	}
	if anyErr != nil {
		_ = u.Machine.EnterDone()
		return wrapNetworkError(anyErr)
	}
	return nil
}

// Write appends buf to the residual buffer, flushing full blocks to the
// next drive in round-robin order as they fill.
func (u *Upload) Write(ctx context.Context, buf []byte) error {
	if err := u.Machine.RequirePrepared(); err != nil {
		return err
	}
	_, _ = u.hasher.Write(buf)
	u.bytes += int64(len(buf))
	u.buf = append(u.buf, buf...)
	for len(u.buf) >= u.blockSize {
		block := u.buf[:u.blockSize]
		u.buf = append([]byte(nil), u.buf[u.blockSize:]...)
		u.flushBlock(block)
	}
	return nil
}

// SetXattr records one xattr key/value to be stored in the chunk's
// manifest at Commit. Must be called before Prepare.
func (u *Upload) SetXattr(key, value string) {
	if u.xattrs == nil {
		u.xattrs = make(map[string]string)
	}
	u.xattrs[key] = value
}

func (u *Upload) flushBlock(block []byte) {
	t := u.targets[u.nextDrive%len(u.targets)]
	key := blockKey(u.chunkID, u.nextDrive, len(block))
	s := doPut(t.Drive, key, block, sched.NowMS()+10000)
	u.ops = append(u.ops, &pendingOp{key: key, sync: s})
	u.nextDrive++
}

// Commit flushes any residual buffer, writes the xattr manifest, and
// waits for every issued Put, per spec.md §4.7.
func (u *Upload) Commit(ctx context.Context) (ManifestEntry, error) {
	if err := u.Machine.RequirePrepared(); err != nil {
		return ManifestEntry{}, err
	}
	if len(u.buf) > 0 {
		u.flushBlock(u.buf)
		u.buf = nil
	}

	entry := ManifestEntry{Bytes: u.bytes, MD5: fmt.Sprintf("%x", u.hasher.Sum(nil)), Xattrs: u.xattrs}
	manifestBytes, err := manifestJSON(entry)
	if err != nil {
		_ = u.Machine.EnterDone()
		return ManifestEntry{}, status.Wrap(status.InternalError, status.CodeInternal, "manifest encode failed", err)
	}
	mt := u.targets[u.nextDrive%len(u.targets)]
	manifestSync := doPut(mt.Drive, manifestKey(u.chunkID), manifestBytes, sched.NowMS()+10000)

	for _, op := range u.ops {
		if err := op.sync.Wait(ctx); err != nil {
			_ = u.Machine.EnterDone()
			return ManifestEntry{}, wrapNetworkError(err)
		}
	}
	if err := manifestSync.Wait(ctx); err != nil {
		_ = u.Machine.EnterDone()
		return ManifestEntry{}, wrapNetworkError(err)
	}

	if err := u.Machine.EnterDone(); err != nil {
		return ManifestEntry{}, err
	}
	return entry, nil
}

// Abort issues a Delete for every block key already Put, with a rolling
// window of DefaultDeleteParallelism concurrent deletes, per spec.md
// §4.7.
func (u *Upload) Abort(ctx context.Context) error {
	if err := u.Machine.RequireNotDone(); err != nil {
		return err
	}
	keys := make([]string, 0, len(u.ops))
	for _, op := range u.ops {
		keys = append(keys, op.key)
	}
	rollingDelete(ctx, u.targets, keys, DefaultDeleteParallelism)
	return u.Machine.EnterDone()
}

// rollingDelete issues a Delete per key against the drive the key was
// stored on (key index i maps to drive i%len(targets), matching the
// Upload's round-robin assignment), maintaining at most `window`
// concurrent in-flight deletes at a time.
func rollingDelete(ctx context.Context, targets []Target, keys []string, window int) {
	if len(keys) == 0 {
		return
	}
	var running []*client.Sync
	next := 0
	issue := func() {
		if next >= len(keys) {
			return
		}
		drive := targets[next%len(targets)]
		running = append(running, doDelete(drive.Drive, keys[next]))
		next++
	}
	for len(running) < window && next < len(keys) {
		issue()
	}
	for len(running) > 0 {
		front := running[0]
		running = running[1:]
		_ = front.Wait(ctx)
		issue()
	}
}
