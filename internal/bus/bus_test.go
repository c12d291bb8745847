package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_DropOldest(t *testing.T) {
	ch := NewChannel[int]("test", 2, DropOldest)
	ctx := context.Background()

	require.NoError(t, ch.Publish(ctx, 1))
	require.NoError(t, ch.Publish(ctx, 2))
	// Lleno: el 3 desaloja al 1
	require.NoError(t, ch.Publish(ctx, 3))

	assert.Equal(t, 2, <-ch.Recv())
	assert.Equal(t, 3, <-ch.Recv())
	// El mensaje desalojado cuenta como dropped.
	assert.Equal(t, int64(1), ch.Dropped())
}

func TestChannel_DropNewest(t *testing.T) {
	ch := NewChannel[int]("test", 1, DropNewest)
	ctx := context.Background()

	require.NoError(t, ch.Publish(ctx, 1))
	err := ch.Publish(ctx, 2)

	assert.ErrorIs(t, err, ErrDropped)
	assert.Equal(t, int64(1), ch.Dropped())
	assert.Equal(t, 1, <-ch.Recv())
}

func TestChannel_BlockWaitsForConsumer(t *testing.T) {
	ch := NewChannel[int]("test", 1, Block)
	ctx := context.Background()

	require.NoError(t, ch.Publish(ctx, 1))

	done := make(chan error, 1)
	go func() {
		done <- ch.Publish(ctx, 2)
	}()

	// El productor está bloqueado hasta que alguien consuma.
	select {
	case <-done:
		t.Fatal("publish returned before a consumer made room")
	case <-time.After(20 * time.Millisecond):
	}

	assert.Equal(t, 1, <-ch.Recv())
	require.NoError(t, <-done)
	assert.Equal(t, 2, <-ch.Recv())
}

func TestChannel_BlockHonorsContext(t *testing.T) {
	ch := NewChannel[int]("test", 1, Block)
	require.NoError(t, ch.Publish(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := ch.Publish(ctx, 2)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), ch.Dropped())
}

func TestChannel_FIFOForSurvivors(t *testing.T) {
	ch := NewChannel[int]("test", 8, DropOldest)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, ch.Publish(ctx, i))
	}
	for i := 1; i <= 5; i++ {
		assert.Equal(t, i, <-ch.Recv())
	}
}

func TestNew_DefaultChannels(t *testing.T) {
	b := New()
	require.NotNil(t, b.GameEvents)
	require.NotNil(t, b.MarketUpdates)
	require.NotNil(t, b.TradeSignals)
	require.NotNil(t, b.FillReports)
	require.NotNil(t, b.Settlements)
}
