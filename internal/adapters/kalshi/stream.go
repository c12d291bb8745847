package kalshi

// stream.go — Kalshi orderbook WebSocket client.
//
// Connection state machine:
//
//	CONNECTING → AUTHENTICATING → SUBSCRIBING → STREAMING → (RECONNECT_BACKOFF)
//
// Auth happens at handshake time via the same signed headers as REST.
// On any transport error the state resets to CONNECTING with exponential
// backoff (100ms → 30s, 10% jitter). On reconnect all subscriptions are
// re-issued and every cached ticker is marked stale until its next snapshot.
//
// Sequence discipline: each ticker carries an expected next sequence.
// An out-of-order delta marks the ticker stale and requests a re-snapshot
// (a fresh subscribe); deltas are dropped until the snapshot lands.

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

const (
	wsConnectTimeout = 5 * time.Second
	wsIdleTimeout    = 60 * time.Second
	wsPingInterval   = 20 * time.Second
	wsWriteTimeout   = 5 * time.Second

	wsBackoffMin    = 100 * time.Millisecond
	wsBackoffMax    = 30 * time.Second
	wsBackoffJitter = 0.1

	orderbookChannel = "orderbook_delta"
)

// bookState es la profundidad local de un ticker: price → qty por lado.
type bookState struct {
	yes   map[int]int
	no    map[int]int
	seq   int64
	stale bool
}

func newBookState() *bookState {
	return &bookState{yes: make(map[int]int), no: make(map[int]int), stale: true}
}

// StreamClient mantiene la suscripción de orderbooks y alimenta la BookCache.
// Implementa ports.MarketStream. Escritor único de la cache.
type StreamClient struct {
	wsURL    string
	signPath string
	signer   *Signer
	cache    *domain.BookCache
	onUpdate func(domain.MarketUpdate)

	mu         sync.Mutex
	conn       *websocket.Conn
	subscribed map[string]struct{}
	books      map[string]*bookState
}

// NewStreamClient crea el cliente del stream. onUpdate se invoca por cada
// update aplicado (telemetría); puede ser nil.
func NewStreamClient(wsURL string, signer *Signer, cache *domain.BookCache, onUpdate func(domain.MarketUpdate)) (*StreamClient, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}
	return &StreamClient{
		wsURL:      wsURL,
		signPath:   u.Path,
		signer:     signer,
		cache:      cache,
		onUpdate:   onUpdate,
		subscribed: make(map[string]struct{}),
		books:      make(map[string]*bookState),
	}, nil
}

// Subscribe registra tickers adicionales. Si el stream está conectado manda
// la suscripción inmediatamente; si no, saldrá con el próximo (re)connect.
func (s *StreamClient) Subscribe(tickers []string) {
	s.mu.Lock()
	var fresh []string
	for _, t := range tickers {
		if _, ok := s.subscribed[t]; !ok {
			s.subscribed[t] = struct{}{}
			fresh = append(fresh, t)
		}
	}
	conn := s.conn
	s.mu.Unlock()

	if len(fresh) == 0 {
		return
	}
	if conn != nil {
		if err := s.sendSubscribe(conn, fresh); err != nil {
			slog.Warn("mid-session subscribe failed, will retry on reconnect",
				"tickers", len(fresh), "err", err)
		}
	}
}

// Run mantiene la conexión viva hasta que ctx se cancele.
func (s *StreamClient) Run(ctx context.Context) error {
	backoff := wsBackoffMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := s.dial(ctx)
		if err != nil {
			if IsAuthErr(err) {
				// Fallo de firma/credenciales: reconectar no lo arregla.
				return err
			}
			slog.Warn("ws connect failed", "err", err, "retry_in", backoff)
			if !sleepCtx(ctx, jitter(backoff)) {
				return ctx.Err()
			}
			backoff = minDur(backoff*2, wsBackoffMax)
			continue
		}
		backoff = wsBackoffMin

		err = s.stream(ctx, conn)
		conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("ws stream interrupted", "err", err, "retry_in", backoff)
		if !sleepCtx(ctx, jitter(backoff)) {
			return ctx.Err()
		}
		backoff = minDur(backoff*2, wsBackoffMax)
	}
}

// dial cubre CONNECTING y AUTHENTICATING: el handshake lleva los headers
// firmados, así que un 401 en el upgrade es un fallo de auth.
func (s *StreamClient) dial(ctx context.Context) (*websocket.Conn, error) {
	headers, err := s.signer.Headers(http.MethodGet, s.signPath)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}

	dialer := websocket.Dialer{HandshakeTimeout: wsConnectTimeout}
	conn, resp, err := dialer.DialContext(ctx, s.wsURL, h)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, ErrAuth
		}
		return nil, err
	}
	return conn, nil
}

// stream cubre SUBSCRIBING y STREAMING para una conexión.
func (s *StreamClient) stream(ctx context.Context, conn *websocket.Conn) error {
	// Todo lo cacheado es sospechoso hasta el próximo snapshot.
	s.cache.MarkAllStale()
	s.mu.Lock()
	for _, b := range s.books {
		b.stale = true
	}
	tickers := make([]string, 0, len(s.subscribed))
	for t := range s.subscribed {
		tickers = append(tickers, t)
	}
	s.conn = conn
	s.mu.Unlock()

	if len(tickers) > 0 {
		if err := s.sendSubscribe(conn, tickers); err != nil {
			return err
		}
	}
	slog.Info("ws streaming", "subscriptions", len(tickers))

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(ctx, conn, done)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(wsIdleTimeout)); err != nil {
			return err
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(raw)
	}
}

func (s *StreamClient) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			// Cierra la conexión para destrabar ReadMessage dentro de un
			// ciclo de espera de I/O.
			conn.Close()
			return
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (s *StreamClient) sendSubscribe(conn *websocket.Conn, tickers []string) error {
	cmd := wsCommand{
		ID:  uuid.NewString(),
		Cmd: "subscribe",
		Params: wsCommandParams{
			Channels:      []string{orderbookChannel},
			MarketTickers: tickers,
		},
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(cmd); err != nil {
		return err
	}
	slog.Info("ws subscribed", "channel", orderbookChannel, "tickers", len(tickers))
	return nil
}

func (s *StreamClient) handleMessage(raw []byte) {
	receivedAt := time.Now()

	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("malformed ws message", "err", err)
		return
	}
	if msg.Type != "orderbook_snapshot" && msg.Type != "orderbook_delta" {
		return
	}

	var book wsBookMsg
	if err := json.Unmarshal(msg.Msg, &book); err != nil {
		slog.Warn("malformed ws book payload", "err", err)
		return
	}
	if book.MarketTicker == "" {
		return
	}

	switch msg.Type {
	case "orderbook_snapshot":
		s.applySnapshot(book, receivedAt)
	case "orderbook_delta":
		s.applyDelta(book, receivedAt)
	}
}

// applySnapshot reconstruye la profundidad y resetea la secuencia esperada.
func (s *StreamClient) applySnapshot(msg wsBookMsg, receivedAt time.Time) {
	s.mu.Lock()
	b := s.books[msg.MarketTicker]
	if b == nil {
		b = newBookState()
		s.books[msg.MarketTicker] = b
	}
	b.yes = levelsToMap(msg.Yes)
	b.no = levelsToMap(msg.No)
	b.seq = msg.Seq
	b.stale = false
	s.mu.Unlock()

	s.pushBook(msg.MarketTicker, msg.Seq, true, receivedAt)
}

// applyDelta aplica un delta en orden de secuencia estricto. Un gap marca el
// ticker stale, pide re-snapshot y descarta deltas hasta que llegue.
func (s *StreamClient) applyDelta(msg wsBookMsg, receivedAt time.Time) {
	s.mu.Lock()
	b := s.books[msg.MarketTicker]
	if b == nil || b.stale {
		s.mu.Unlock()
		return
	}
	if msg.Seq != b.seq+1 {
		expected := b.seq + 1
		b.stale = true
		conn := s.conn
		s.mu.Unlock()

		slog.Warn("sequence gap, requesting re-snapshot",
			"ticker", msg.MarketTicker, "expected", expected, "got", msg.Seq)
		s.cache.MarkStale(msg.MarketTicker)
		if conn != nil {
			if err := s.sendSubscribe(conn, []string{msg.MarketTicker}); err != nil {
				slog.Warn("re-snapshot request failed", "ticker", msg.MarketTicker, "err", err)
			}
		}
		return
	}

	if msg.hasLevels() {
		// Algunos feeds mandan los niveles completos también en deltas.
		if msg.Yes != nil {
			b.yes = levelsToMap(msg.Yes)
		}
		if msg.No != nil {
			b.no = levelsToMap(msg.No)
		}
	} else {
		side := b.yes
		if msg.Side == "no" {
			side = b.no
		}
		qty := side[msg.Price] + msg.Delta
		if qty <= 0 {
			delete(side, msg.Price)
		} else {
			side[msg.Price] = qty
		}
	}
	b.seq = msg.Seq
	s.mu.Unlock()

	s.pushBook(msg.MarketTicker, msg.Seq, false, receivedAt)
}

// pushBook deriva los mejores precios y reemplaza la entrada de la cache.
func (s *StreamClient) pushBook(ticker string, seq int64, isSnapshot bool, receivedAt time.Time) {
	s.mu.Lock()
	b := s.books[ticker]
	if b == nil {
		s.mu.Unlock()
		return
	}
	yesBid, yesAsk := bestPrices(b.yes)
	noBid, noAsk := bestPrices(b.no)
	yesAskQty := b.yes[yesAsk]
	s.mu.Unlock()

	s.cache.Put(domain.OrderBook{
		Ticker:    ticker,
		YesBid:    yesBid,
		YesAsk:    yesAsk,
		NoBid:     noBid,
		NoAsk:     noAsk,
		YesAskQty: yesAskQty,
		Seq:       seq,
		UpdatedAt: receivedAt,
	})

	if s.onUpdate != nil {
		s.onUpdate(domain.MarketUpdate{
			Ticker:     ticker,
			Seq:        seq,
			IsSnapshot: isSnapshot,
			YesBid:     yesBid,
			YesAsk:     yesAsk,
			NoBid:      noBid,
			NoAsk:      noAsk,
			YesAskQty:  yesAskQty,
			ReceivedAt: receivedAt,
		})
	}
}

func levelsToMap(levels [][2]int) map[int]int {
	m := make(map[int]int, len(levels))
	for _, l := range levels {
		if l[1] > 0 {
			m[l[0]] = l[1]
		}
	}
	return m
}

// bestPrices devuelve (max, min) de los niveles con qty > 0; 0 si no hay.
func bestPrices(levels map[int]int) (bid, ask int) {
	for p := range levels {
		if bid == 0 || p > bid {
			bid = p
		}
		if ask == 0 || p < ask {
			ask = p
		}
	}
	return bid, ask
}

func jitter(d time.Duration) time.Duration {
	delta := float64(d) * wsBackoffJitter
	return d - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
