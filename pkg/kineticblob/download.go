package kineticblob

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rawgate/rawgate/pkg/kinetic/client"
	"github.com/rawgate/rawgate/pkg/status"
	"github.com/rawgate/rawgate/pkg/txstate"
)

type blockRef struct {
	drive int
	size  int
	key   string
}

type inflightGet struct {
	block blockRef
	sync  *client.Sync
}

// Download lists a chunk's blocks across all drives, sorts them by
// drive index, and streams them back through a sliding window of
// concurrent Get RPCs, per spec.md §4.7.
type Download struct {
	txstate.Machine

	chunkID  string
	targets  []Target
	blocks   []blockRef
	parallel int

	waiting []int // indices into blocks not yet issued
	running []*inflightGet

	started   bool
	ranged    bool
	firstSkip int
	remaining int64
}

// NewDownload constructs a Download over targets with the given
// parallel_factor (DefaultDownloadParallelism if zero).
func NewDownload(chunkID string, targets []Target, parallel int) *Download {
	if parallel <= 0 {
		parallel = DefaultDownloadParallelism
	}
	return &Download{chunkID: chunkID, targets: targets, parallel: parallel}
}

// Prepare lists keys across all drives, keeping only well-formed block
// keys (skipping "-#" manifests and malformed keys), sorted by drive
// index ascending. If no blocks are found anywhere, Prepare fails
// NotFound.
func (d *Download) Prepare(ctx context.Context) error {
	chunkID := d.chunkID
	if err := d.Machine.EnterPrepared(); err != nil {
		return err
	}

	startKey := []byte(chunkID + "-")
	endKey := []byte(chunkID + "-~") // '~' sorts after digits and '#' in ASCII

	type listResult struct {
		keys [][]byte
		err  error
	}
	// Each drive is listed independently and concurrently; a single
	// drive's failure must not hide blocks the other drives do have, so
	// errgroup collects every result rather than aborting on the first
	// error.
	perDrive := make([]listResult, len(d.targets))
	var g errgroup.Group
	for i, t := range d.targets {
		i, t := i, t
		g.Go(func() error {
			s := doGetKeyRange(t.Drive, startKey, endKey, 10000)
			if err := s.Wait(ctx); err != nil {
				perDrive[i] = listResult{err: err}
				return nil
			}
			reply := s.Exchange().Reply
			if reply == nil || reply.Body == nil || reply.Body.Range == nil {
				return nil
			}
			perDrive[i] = listResult{keys: reply.Body.Range.Keys}
			return nil
		})
	}
	_ = g.Wait()

	var blocks []blockRef
	var anyErr error
	for _, r := range perDrive {
		if r.err != nil {
			anyErr = r.err
			continue
		}
		for _, k := range r.keys {
			idx, size, ok := parseBlockKey(chunkID, string(k))
			if !ok {
				continue
			}
			blocks = append(blocks, blockRef{drive: idx, size: size, key: string(k)})
		}
	}

	if len(blocks) == 0 {
		_ = d.Machine.EnterDone()
		if anyErr != nil {
			return wrapNetworkError(anyErr)
		}
		return status.ErrNotFound
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].drive < blocks[j].drive })
	d.blocks = blocks
	d.waiting = make([]int, len(blocks))
	for i := range blocks {
		d.waiting[i] = i
	}
	return nil
}

// SetRange narrows the Download to [offset, offset+size) over the
// concatenated block stream, dropping blocks entirely before offset and
// recording how many leading bytes of the first remaining block to skip.
// Allowed only in Prepared before the first Read, per spec.md §4.4.
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

	var total int64
	for _, b := range d.blocks {
		total += int64(b.size)
	}
	if offset+size > total {
		return status.ErrNoData
	}

	var cum int64
	start := len(d.blocks)
	skip := int64(0)
	for i, b := range d.blocks {
		bsize := int64(b.size)
		if cum+bsize > offset {
			start = i
			skip = offset - cum
			break
		}
		cum += bsize
	}

	d.blocks = d.blocks[start:]
	d.waiting = make([]int, len(d.blocks))
	for i := range d.blocks {
		d.waiting[i] = i
	}
	d.firstSkip = int(skip)
	d.ranged = true
	d.remaining = size
	return nil
}

// promoteToWindow issues Gets for waiting blocks until the running
// window reaches d.parallel or waiting is exhausted.
func (d *Download) promoteToWindow() {
	for len(d.running) < d.parallel && len(d.waiting) > 0 {
		idx := d.waiting[0]
		d.waiting = d.waiting[1:]
		b := d.blocks[idx]
		t := d.targets[b.drive%len(d.targets)]
		s := doGet(t.Drive, b.key)
		d.running = append(d.running, &inflightGet{block: b, sync: s})
	}
}

// Read waits on the front of the running window, returning its block's
// value bytes, and promotes the next waiting block into the window. A
// nil slice with IsEOF()==true signals completion.
func (d *Download) Read(ctx context.Context) ([]byte, error) {
	if err := d.Machine.RequirePrepared(); err != nil {
		return nil, err
	}
	d.started = true
	if d.ranged && d.remaining <= 0 {
		return nil, nil
	}
	d.promoteToWindow()
	if len(d.running) == 0 {
		return nil, nil
	}
	front := d.running[0]
	d.running = d.running[1:]
	if err := front.sync.Wait(ctx); err != nil {
		return nil, wrapNetworkError(err)
	}
	d.promoteToWindow()
	val := front.sync.Exchange().ReplyValue
	if d.ranged {
		if d.firstSkip > 0 {
			if d.firstSkip >= len(val) {
				d.firstSkip -= len(val)
				val = nil
			} else {
				val = val[d.firstSkip:]
				d.firstSkip = 0
			}
		}
		if int64(len(val)) > d.remaining {
			val = val[:d.remaining]
		}
		d.remaining -= int64(len(val))
	}
	return val, nil
}

// IsEOF reports whether both the waiting and running queues are
// exhausted, per spec.md §4.7's "is_eof() <-> both queues empty", or
// whether a ranged Download has delivered its full requested size.
func (d *Download) IsEOF() bool {
	if d.ranged && d.remaining <= 0 {
		return true
	}
	return len(d.waiting) == 0 && len(d.running) == 0
}

// Commit and Abort are no-ops beyond the state transition: a Download
// has no side effects to finalize or release on the drives.
func (d *Download) Commit(ctx context.Context) error { return d.Machine.EnterDone() }
func (d *Download) Abort(ctx context.Context) error  { return d.Machine.EnterDone() }
