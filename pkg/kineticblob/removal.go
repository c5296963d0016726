package kineticblob

import (
	"context"

	"github.com/rawgate/rawgate/pkg/status"
	"github.com/rawgate/rawgate/pkg/txstate"
)

// Removal lists a chunk's keys (blocks and manifest) across all drives
// and deletes them in parallel on Commit, per spec.md §4.7.
type Removal struct {
	txstate.Machine

	chunkID string
	targets []Target
	keys    []removalKey
}

type removalKey struct {
	drive int
	key   string
}

// NewRemoval constructs a Removal of chunkID over targets.
func NewRemoval(chunkID string, targets []Target) *Removal {
	return &Removal{chunkID: chunkID, targets: targets}
}

// Prepare lists both block keys and the manifest key across all drives.
// If nothing is found anywhere, Prepare fails NotFound.
func (r *Removal) Prepare(ctx context.Context) error {
	chunkID := r.chunkID
	if err := r.Machine.EnterPrepared(); err != nil {
		return err
	}

	startKey := []byte(chunkID + "-")
	endKey := []byte(chunkID + "-~")

	type listResult struct {
		driveIdx int
		keys     [][]byte
		err      error
	}
	results := make(chan listResult, len(r.targets))
	for i, t := range r.targets {
		i, t := i, t
		go func() {
			s := doGetKeyRange(t.Drive, startKey, endKey, 10000)
			if err := s.Wait(ctx); err != nil {
				results <- listResult{driveIdx: i, err: err}
				return
			}
			reply := s.Exchange().Reply
			if reply == nil || reply.Body == nil || reply.Body.Range == nil {
				results <- listResult{driveIdx: i}
				return
			}
			results <- listResult{driveIdx: i, keys: reply.Body.Range.Keys}
		}()
	}

	var found []removalKey
	var anyErr error
	for range r.targets {
		res := <-results
		if res.err != nil {
			anyErr = res.err
			continue
		}
		for _, k := range res.keys {
			found = append(found, removalKey{drive: res.driveIdx, key: string(k)})
		}
	}

	if len(found) == 0 {
		_ = r.Machine.EnterDone()
		if anyErr != nil {
			return wrapNetworkError(anyErr)
		}
		return status.ErrNotFound
	}

	r.keys = found
	return nil
}

// Commit deletes every listed key via the DefaultDeleteParallelism
// rolling window, one Delete issued against the drive the key was
// listed on.
func (r *Removal) Commit(ctx context.Context) error {
	if err := r.Machine.RequirePrepared(); err != nil {
		return err
	}

	var running []interface {
		Wait(ctx context.Context) error
	}
	next := 0
	issue := func() {
		if next >= len(r.keys) {
			return
		}
		k := r.keys[next]
		t := r.targets[k.drive]
		running = append(running, doDelete(t.Drive, k.key))
		next++
	}
	for len(running) < DefaultDeleteParallelism && next < len(r.keys) {
		issue()
	}
	var firstErr error
	for len(running) > 0 {
		front := running[0]
		running = running[1:]
		if err := front.Wait(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		issue()
	}

	if firstErr != nil {
		_ = r.Machine.EnterDone()
		return wrapNetworkError(firstErr)
	}
	return r.Machine.EnterDone()
}

// Abort releases the listed keys without deleting anything.
func (r *Removal) Abort(ctx context.Context) error {
	if err := r.Machine.RequireNotDone(); err != nil {
		return err
	}
	return r.Machine.EnterDone()
}
