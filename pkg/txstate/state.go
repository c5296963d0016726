// Package txstate implements the three-state transaction lifecycle shared
// by Upload, Download, and Removal: Init -> Prepared -> Done. Every
// back-end-specific transaction type embeds a Machine and calls Enter*
// before running its own logic, so the state guard is enforced once,
// identically, everywhere — rather than re-implemented per back-end the
// way the original C++ had one state enum per transaction class.
package txstate

import (
	"sync"

	"github.com/rawgate/rawgate/pkg/status"
)

// State is one of the three transaction lifecycle states.
type State int

const (
	// Init is the state a transaction is created in.
	Init State = iota
	// Prepared is entered by a successful Prepare() call.
	Prepared
	// Done is entered by Commit() or Abort(); terminal.
	Done
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Prepared:
		return "prepared"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// ErrBadState is wrapped into the returned Status whenever a call arrives
// in a state that does not permit it. Per spec.md §4.4, such a call must
// fail without mutating state — Machine enforces this by checking and
// transitioning under a single lock, never partially.
var ErrBadState = status.New(status.InternalError, status.CodeInternal, "operation not valid in current transaction state")

// Machine is the embeddable three-state guard. It is safe for concurrent
// use; a transaction backed by a Kinetic blob or local file may have its
// Commit and a concurrent diagnostic Stat both touch the machine.
type Machine struct {
	mu    sync.Mutex
	state State
}

// NewMachine returns a Machine in Init.
func NewMachine() *Machine {
	return &Machine{state: Init}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EnterPrepared performs the only Init->Prepared transition. It returns
// ErrBadState without mutating state if called from anywhere but Init.
func (m *Machine) EnterPrepared() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Init {
		return ErrBadState
	}
	m.state = Prepared
	return nil
}

// EnterDone performs a Prepared->Done transition, used by both Commit and
// Abort. It returns ErrBadState without mutating state if called from
// anywhere but Prepared.
func (m *Machine) EnterDone() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Prepared {
		return ErrBadState
	}
	m.state = Done
	return nil
}

// RequirePrepared returns ErrBadState if the machine is not currently in
// Prepared, without mutating state. Used by calls (Write, Read, SetRange,
// Commit) that are only valid mid-transaction.
func (m *Machine) RequirePrepared() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Prepared {
		return ErrBadState
	}
	return nil
}

// RequireNotDone returns ErrBadState if the machine has already reached
// Done. Used by calls valid in either Init or Prepared (e.g. Abort).
func (m *Machine) RequireNotDone() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Done {
		return ErrBadState
	}
	return nil
}

// Transaction is the three-call shape (Prepare, Commit, Abort) of the
// transaction lifecycle. The back-end Upload/Download/Removal types do not
// implement it: their methods take a context.Context, and Upload.Commit
// also returns a result. The gateway drives them through its own
// Uploader, Downloader and Remover interfaces (pkg/gateway).
type Transaction interface {
	// Prepare performs the back-end-specific setup (reserve pending state,
	// open a reader, verify presence) and transitions Init->Prepared on
	// success. On failure it transitions straight to Done per the outcome
	// table in spec.md §4.4 and returns the failure Status.
	Prepare() error
	// Commit finalizes the transaction (seal manifest, drain to EOF,
	// delete targets) and transitions Prepared->Done.
	Commit() error
	// Abort releases any reserved state without finalizing, transitioning
	// Prepared->Done.
	Abort() error
}
