// Package stats is the HTTP client for the aggregated-games statistics
// service. Every failure (transport, status, timeout, malformed body) is
// reported as "no data": a nil result and a nil error.
package stats

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/policy-arena/internal/model"
)

// DefaultTimeout bounds every lookup.
const DefaultTimeout = 5 * time.Second

// Client queries one statistics dataset over HTTP.
type Client struct {
	name    string
	baseURL string
	httpC   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpC.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpC = h }
}

// WithName labels the client in logs (e.g. "primary").
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// NewClient creates a client rooted at baseURL, e.g.
// http://localhost:5554/datasets/primary.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		name:    "stats",
		baseURL: strings.TrimRight(baseURL, "/"),
		httpC:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name returns the log label.
func (c *Client) Name() string { return c.name }

// Position fetches the aggregate for the queried position.
func (c *Client) Position(ctx context.Context, q model.Query) (*model.PositionAggregate, error) {
	path, err := queryPath(q, "position")
	if err != nil {
		c.noData(q, err)
		return nil, nil
	}
	body, err := c.get(ctx, path)
	if err != nil {
		c.noData(q, err)
		return nil, nil
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		c.noData(q, errors.New("empty position body"))
		return nil, nil
	}
	var env struct {
		model.PositionAggregate
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		c.noData(q, fmt.Errorf("decode position: %w", err))
		return nil, nil
	}
	if env.Error != "" {
		c.noData(q, fmt.Errorf("service: %s", env.Error))
		return nil, nil
	}
	p := env.PositionAggregate
	return &p, nil
}

// Moves fetches the successor-move aggregates in service order.
func (c *Client) Moves(ctx context.Context, q model.Query) ([]model.MoveAggregate, error) {
	path, err := queryPath(q, "moves")
	if err != nil {
		c.noData(q, err)
		return nil, nil
	}
	body, err := c.get(ctx, path)
	if err != nil {
		c.noData(q, err)
		return nil, nil
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		c.noData(q, fmt.Errorf("moves: expected a JSON array"))
		return nil, nil
	}
	var moves []model.MoveAggregate
	if err := json.Unmarshal(trimmed, &moves); err != nil {
		c.noData(q, fmt.Errorf("decode moves: %w", err))
		return nil, nil
	}
	if len(moves) == 0 {
		return nil, nil
	}
	return moves, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpC.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s status %d: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}

func (c *Client) noData(q model.Query, err error) {
	log.Debug().Err(err).Str("store", c.name).Str("query", q.String()).Msg("Statistics lookup returned no data")
}

func queryPath(q model.Query, suffix string) (string, error) {
	if q.PositionID != "" {
		p := "/position/" + url.PathEscape(q.PositionID)
		if suffix == "moves" {
			p += "/moves"
		}
		return p, nil
	}
	if q.FEN == "" {
		return "", fmt.Errorf("query has neither position id nor fen")
	}
	return "/fen/" + EncodeFEN(q.FEN) + "/" + strconv.Itoa(q.Level) + "/" + suffix, nil
}

// EncodeFEN renders a FEN as a single URL path segment.
func EncodeFEN(fen string) string {
	return base64.URLEncoding.EncodeToString([]byte(fen))
}

// DecodeFEN accepts URL-safe and standard base64, padded or not.
func DecodeFEN(s string) (string, error) {
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding, base64.RawStdEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return string(b), nil
		}
	}
	return "", fmt.Errorf("invalid base64 fen %q", s)
}
