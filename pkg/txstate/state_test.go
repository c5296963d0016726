package txstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHappyPathInitPreparedDone(t *testing.T) {
	m := NewMachine()
	assert.Equal(t, Init, m.State())

	require.NoError(t, m.EnterPrepared())
	assert.Equal(t, Prepared, m.State())

	require.NoError(t, m.EnterDone())
	assert.Equal(t, Done, m.State())
}

func TestCommitOrAbortFromInitFailsWithoutStateChange(t *testing.T) {
	m := NewMachine()
	err := m.EnterDone()
	assert.ErrorIs(t, err, ErrBadState)
	assert.Equal(t, Init, m.State(), "failed transition must not mutate state")
}

func TestAnyCallFromDoneFailsWithoutStateChange(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.EnterPrepared())
	require.NoError(t, m.EnterDone())

	assert.ErrorIs(t, m.EnterPrepared(), ErrBadState)
	assert.ErrorIs(t, m.EnterDone(), ErrBadState)
	assert.Equal(t, Done, m.State())
}

func TestDoublePrepareFails(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.EnterPrepared())
	assert.ErrorIs(t, m.EnterPrepared(), ErrBadState)
	assert.Equal(t, Prepared, m.State())
}

func TestRequirePreparedGuardsDataPathCalls(t *testing.T) {
	m := NewMachine()
	assert.ErrorIs(t, m.RequirePrepared(), ErrBadState)

	require.NoError(t, m.EnterPrepared())
	assert.NoError(t, m.RequirePrepared())

	require.NoError(t, m.EnterDone())
	assert.ErrorIs(t, m.RequirePrepared(), ErrBadState)
}

func TestRequireNotDoneAllowsInitAndPrepared(t *testing.T) {
	m := NewMachine()
	assert.NoError(t, m.RequireNotDone())

	require.NoError(t, m.EnterPrepared())
	assert.NoError(t, m.RequireNotDone())

	require.NoError(t, m.EnterDone())
	assert.ErrorIs(t, m.RequireNotDone(), ErrBadState)
}
