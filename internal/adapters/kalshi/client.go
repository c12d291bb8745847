package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Rate limits al 60% de los límites documentados del tier básico.
	generalRatePerSec = 10
	orderRatePerSec   = 5

	maxRetries    = 1
	baseRetryWait = 250 * time.Millisecond

	marketsFetchTimeout = 3 * time.Second
)

// Client es el HTTP client firmado del exchange, con rate limiting.
// La conexión se pre-calienta en Warm() y se mantiene viva con keepalives:
// el hot path de órdenes nunca paga handshake TCP/TLS ni resolución DNS.
type Client struct {
	http           *http.Client
	baseURL        string
	signPrefix     string // path del baseURL, incluido en el mensaje firmado
	signer         *Signer
	generalLimiter *rate.Limiter
	orderLimiter   *rate.Limiter
}

// NewClient crea un Client para el baseURL dado.
func NewClient(baseURL string, signer *Signer) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("kalshi.NewClient: parse base URL: %w", err)
	}
	return &Client{
		http: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		baseURL:        baseURL,
		signPrefix:     u.Path,
		signer:         signer,
		generalLimiter: rate.NewLimiter(generalRatePerSec, 10),
		orderLimiter:   rate.NewLimiter(orderRatePerSec, 5),
	}, nil
}

// Warm pre-resuelve DNS y fuerza el handshake TCP+TLS con una llamada
// autenticada no-op. Debe llamarse en el bootstrap antes de operar.
func (c *Client) Warm(ctx context.Context) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("kalshi.Warm: %w", err)
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, u.Hostname())
	if err != nil {
		return fmt.Errorf("kalshi.Warm: resolve %s: %w", u.Hostname(), err)
	}
	slog.Info("DNS pre-resolved", "host", u.Hostname(), "addrs", addrs)

	var status exchangeStatusResponse
	if err := c.get(ctx, "/exchange/status", &status); err != nil {
		return fmt.Errorf("kalshi.Warm: exchange status: %w", err)
	}
	slog.Info("kalshi REST connection warmed",
		"exchange_active", status.ExchangeActive,
		"trading_active", status.TradingActive,
	)
	return nil
}

// Keepalive manda un ping liviano cada interval para mantener la conexión
// caliente. Corre hasta que el contexto se cancele.
func (c *Client) Keepalive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var status exchangeStatusResponse
			if err := c.get(ctx, "/exchange/status", &status); err != nil {
				slog.Warn("keepalive ping failed", "err", err)
			}
		}
	}
}

// get hace un GET firmado con rate limiting y un retry con backoff.
func (c *Client) get(ctx context.Context, path string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.generalLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		err := c.do(ctx, http.MethodGet, path, nil, out)
		if err == nil {
			return nil
		}
		if attempt == maxRetries || ctx.Err() != nil {
			return err
		}
		c.sleep(ctx, attempt)
	}
	return fmt.Errorf("unreachable")
}

// postOrder hace un POST firmado SIN retries: en el camino de órdenes un
// reintento ejecuta a un precio que ya se comió el edge.
func (c *Client) postOrder(ctx context.Context, path string, body, out any) error {
	if err := c.orderLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	headers, err := c.signer.Headers(method, c.signPrefix+path)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s %s: %w: status %d: %s", method, path, ErrAuth, resp.StatusCode, respBody)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, respBody)
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

// sleep espera con backoff exponencial y jitter, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := baseRetryWait * time.Duration(1<<attempt)
	wait += time.Duration(rand.Int63n(int64(wait) / 2))
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
