package sched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelSendRecv(t *testing.T) {
	ch := NewChannel[int](1)
	ctx := context.Background()

	require.NoError(t, ch.Send(ctx, 42, 0))
	v, err := ch.Recv(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestChannelRecvTimeout(t *testing.T) {
	ch := NewChannel[int](1)
	ctx := context.Background()

	_, err := ch.Recv(ctx, NowMS()+20)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestChannelSendTimeoutWhenFull(t *testing.T) {
	ch := NewChannel[int](1)
	ctx := context.Background()

	require.NoError(t, ch.Send(ctx, 1, 0))
	err := ch.Send(ctx, 2, NowMS()+20)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestChannelRecvCancelledContext(t *testing.T) {
	ch := NewChannel[int](0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ch.Recv(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannelCloseDrains(t *testing.T) {
	ch := NewChannel[int](2)
	ctx := context.Background()
	require.NoError(t, ch.Send(ctx, 1, 0))
	ch.Close()

	v, err := ch.Recv(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = ch.Recv(ctx, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSleepUntilDeadline(t *testing.T) {
	ctx := context.Background()
	start := time.Now()
	require.NoError(t, SleepUntil(ctx, NowMS()+30))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestSleepUntilPastDeadlineReturnsImmediately(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, SleepUntil(ctx, NowMS()-10))
}
