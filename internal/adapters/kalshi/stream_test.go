package kalshi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

const streamTicker = "KXNCAAMBTOTAL-26FEB19WEBBRAD-177"

func newTestStream(t *testing.T) (*StreamClient, *domain.BookCache, *[]domain.MarketUpdate) {
	t.Helper()
	cache := domain.NewBookCache()
	var updates []domain.MarketUpdate
	s, err := NewStreamClient("wss://example.test/trade-api/ws/v2", nil, cache,
		func(u domain.MarketUpdate) { updates = append(updates, u) })
	require.NoError(t, err)
	return s, cache, &updates
}

func snapshot(seq int64, yes, no [][2]int) wsBookMsg {
	return wsBookMsg{MarketTicker: streamTicker, Seq: seq, Yes: yes, No: no}
}

func TestStream_SnapshotPopulatesCache(t *testing.T) {
	s, cache, updates := newTestStream(t)

	s.applySnapshot(snapshot(4, [][2]int{{78, 50}, {80, 120}}, [][2]int{{18, 30}, {20, 40}}), time.Now())

	ob, ok := cache.Get(streamTicker)
	require.True(t, ok)
	assert.Equal(t, 78, ob.YesAsk) // menor precio con qty
	assert.Equal(t, 80, ob.YesBid) // mayor precio con qty
	assert.Equal(t, 18, ob.NoAsk)
	assert.Equal(t, int64(4), ob.Seq)
	assert.False(t, ob.Stale)
	assert.True(t, ob.HasYesAsk())

	require.Len(t, *updates, 1)
	assert.True(t, (*updates)[0].IsSnapshot)
}

func TestStream_InOrderDeltasApply(t *testing.T) {
	s, cache, _ := newTestStream(t)
	s.applySnapshot(snapshot(4, [][2]int{{80, 100}}, nil), time.Now())

	// Delta de nivel único en secuencia.
	s.applyDelta(wsBookMsg{MarketTicker: streamTicker, Seq: 5, Price: 79, Delta: 40, Side: "yes"}, time.Now())

	ob, _ := cache.Get(streamTicker)
	assert.Equal(t, int64(5), ob.Seq)
	assert.Equal(t, 79, ob.YesAsk)
	assert.Equal(t, 40, ob.YesAskQty)
}

func TestStream_GapMarksStaleAndDropsDeltas(t *testing.T) {
	s, cache, _ := newTestStream(t)
	s.applySnapshot(snapshot(4, [][2]int{{80, 100}}, nil), time.Now())
	s.applyDelta(wsBookMsg{MarketTicker: streamTicker, Seq: 5, Price: 79, Delta: 40, Side: "yes"}, time.Now())

	// Secuencia 6 perdida: el 7 fuerza stale.
	s.applyDelta(wsBookMsg{MarketTicker: streamTicker, Seq: 7, Price: 78, Delta: 10, Side: "yes"}, time.Now())

	ob, _ := cache.Get(streamTicker)
	assert.True(t, ob.Stale)
	assert.False(t, ob.HasYesAsk()) // sin edge evaluable sobre este ticker

	// Los deltas siguientes se descartan hasta el snapshot.
	s.applyDelta(wsBookMsg{MarketTicker: streamTicker, Seq: 8, Price: 77, Delta: 10, Side: "yes"}, time.Now())
	ob, _ = cache.Get(streamTicker)
	assert.True(t, ob.Stale)

	// El re-snapshot resetea secuencia y limpia el stale.
	s.applySnapshot(snapshot(12, [][2]int{{81, 60}}, nil), time.Now())
	ob, _ = cache.Get(streamTicker)
	assert.False(t, ob.Stale)
	assert.Equal(t, int64(12), ob.Seq)
	assert.Equal(t, 81, ob.YesAsk)

	// Y los deltas en secuencia vuelven a aplicar.
	s.applyDelta(wsBookMsg{MarketTicker: streamTicker, Seq: 13, Price: 82, Delta: 5, Side: "yes"}, time.Now())
	ob, _ = cache.Get(streamTicker)
	assert.Equal(t, int64(13), ob.Seq)
}

func TestStream_DeltaRemovesEmptiedLevel(t *testing.T) {
	s, cache, _ := newTestStream(t)
	s.applySnapshot(snapshot(1, [][2]int{{80, 100}, {82, 50}}, nil), time.Now())

	s.applyDelta(wsBookMsg{MarketTicker: streamTicker, Seq: 2, Price: 80, Delta: -100, Side: "yes"}, time.Now())

	ob, _ := cache.Get(streamTicker)
	assert.Equal(t, 82, ob.YesAsk)
}

func TestStream_DeltaForUnknownTickerIgnored(t *testing.T) {
	s, cache, updates := newTestStream(t)
	s.applyDelta(wsBookMsg{MarketTicker: "UNKNOWN-26FEB19XXYY-10", Seq: 3, Price: 50, Delta: 5, Side: "yes"}, time.Now())

	assert.Equal(t, 0, cache.Len())
	assert.Empty(t, *updates)
}

func TestStream_SubscribeDeduplicates(t *testing.T) {
	s, _, _ := newTestStream(t)
	s.Subscribe([]string{"A", "B"})
	s.Subscribe([]string{"B", "C"})

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Len(t, s.subscribed, 3)
}

func TestStream_HandleMessageMalformedIgnored(t *testing.T) {
	s, cache, _ := newTestStream(t)
	s.handleMessage([]byte("{not json"))
	s.handleMessage([]byte(`{"type":"orderbook_delta","msg":{"market_ticker":""}}`))
	s.handleMessage([]byte(`{"type":"ticker","msg":{}}`))
	assert.Equal(t, 0, cache.Len())
}
