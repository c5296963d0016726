package sched

import (
	"context"
	"sync"

	"github.com/rawgate/rawgate/internal/logger"
)

// Spawn schedules fn to run as an independent task and returns immediately;
// it is fire-and-forget the same way the original runtime's spawn() never
// returned a handle. Shutdown is signalled cooperatively via ctx or a stop
// channel observed by fn, never by killing the goroutine.
//
// Panics inside fn are recovered and logged rather than crashing the whole
// gateway process, mirroring the supervisor-level isolation the original
// per-connection tasks had.
func Spawn(ctx context.Context, name string, fn func(ctx context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("task panicked", "task", name, "panic", r)
			}
		}()
		fn(ctx)
	}()
}

// Group runs a set of named tasks and lets the caller block until all of
// them return. The gateway Server uses one to track its per-connection
// tasks.
type Group struct {
	wg sync.WaitGroup
}

// Go adds fn to the group and starts it immediately.
func (g *Group) Go(ctx context.Context, name string, fn func(ctx context.Context)) {
	g.wg.Add(1)
	Spawn(ctx, name, func(ctx context.Context) {
		defer g.wg.Done()
		fn(ctx)
	})
}

// Wait blocks until every task added via Go has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
