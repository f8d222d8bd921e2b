package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/cardtrader/cardtrader/pkg/logger"
)

const (
	// DefaultBaseURL is the production marketplace API.
	DefaultBaseURL = "https://cards-marketplace-api-2fjj.onrender.com"

	defaultTimeout     = 30 * time.Second
	defaultPageSize    = 100
	defaultMaxBodySize = 1 << 20 // 1MiB
)

// TokenSource yields the current bearer token, or "" for anonymous requests.
// The session store satisfies this interface.
type TokenSource interface {
	Token() string
}

// Config configures the API client.
type Config struct {
	// BaseURL is the root of the marketplace API. Defaults to DefaultBaseURL.
	BaseURL string
	// HTTPClient executes requests. When nil a default client with a
	// conservative timeout is used.
	HTTPClient *http.Client
	// TokenSource supplies the bearer token attached to requests. Nil means
	// every request is anonymous.
	TokenSource TokenSource
	// PageSize is the rpp parameter sent to list endpoints. Defaults to 100.
	PageSize int
	// MaxBodyBytes caps response bodies to prevent memory exhaustion.
	MaxBodyBytes int64
	// Limiter optionally throttles outgoing requests.
	Limiter *rate.Limiter
	// Logger receives per-request debug logs. Nil means silent.
	Logger *logger.Logger
}

// Client issues typed requests against the marketplace API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	tokens       TokenSource
	pageSize     int
	maxBodyBytes int64
	limiter      *rate.Limiter
	log          *logger.Logger
}

// New creates a marketplace API client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("api: BaseURL must be a valid URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("api: BaseURL scheme must be http or https")
	}
	if parsed.User != nil {
		return nil, fmt.Errorf("api: BaseURL must not include user info")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodySize
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Client{
		baseURL:      baseURL,
		httpClient:   httpClient,
		tokens:       cfg.TokenSource,
		pageSize:     pageSize,
		maxBodyBytes: maxBodyBytes,
		limiter:      cfg.Limiter,
		log:          log,
	}, nil
}

// PageSize returns the configured rpp value for list requests.
func (c *Client) PageSize() int { return c.pageSize }

// do executes one request. body is JSON-marshalled when non-nil; a 2xx
// response is decoded into out when out is non-nil. A 204 or empty body
// leaves out untouched. Non-2xx responses become a *RequestError carrying
// the status code and the (capped) body text.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("api: rate limit wait: %w", err)
		}
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("api: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debugf("%s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		text := ""
		if readErr == nil {
			text = strings.TrimSpace(string(raw))
		}
		return &RequestError{Status: resp.StatusCode, Body: text}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return fmt.Errorf("api: read response body: %w", err)
	}
	// Parsing an empty body as JSON is undefined behavior; treat it like 204.
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	payload := map[string]string{"email": email, "password": password}
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/login", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and returns its first session.
func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResponse, error) {
	payload := map[string]string{"name": name, "email": email, "password": password}
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/register", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me fetches the profile of the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cards fetches one page of the card catalog.
func (c *Client) Cards(ctx context.Context, page int) (*Page[Card], error) {
	if page < 1 {
		page = 1
	}
	var out Page[Card]
	path := fmt.Sprintf("/cards?rpp=%d&page=%d", c.pageSize, page)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AllCards walks the catalog pages until the server reports no more.
func (c *Client) AllCards(ctx context.Context) ([]Card, error) {
	var all []Card
	for page := 1; ; page++ {
		envelope, err := c.Cards(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, envelope.List...)
		if !envelope.More || len(envelope.List) == 0 {
			return all, nil
		}
	}
}

// Card fetches a single card by id.
func (c *Client) Card(ctx context.Context, id string) (*Card, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("api: card id is required")
	}
	var out Card
	if err := c.do(ctx, http.MethodGet, "/cards/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyCards lists the authenticated user's collection.
func (c *Client) MyCards(ctx context.Context) ([]Card, error) {
	var out []Card
	if err := c.do(ctx, http.MethodGet, "/me/cards", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddCards adds a batch of cards to the authenticated user's collection.
// Whether the server processes the batch atomically is a server concern.
func (c *Client) AddCards(ctx context.Context, cardIDs []string) error {
	if len(cardIDs) == 0 {
		return fmt.Errorf("api: at least one card id is required")
	}
	payload := map[string][]string{"cardIds": cardIDs}
	return c.do(ctx, http.MethodPost, "/me/cards", payload, nil)
}

// Trades fetches one page of open trades.
func (c *Client) Trades(ctx context.Context, page int) (*Page[Trade], error) {
	if page < 1 {
		page = 1
	}
	var out Page[Trade]
	path := fmt.Sprintf("/trades?rpp=%d&page=%d", c.pageSize, page)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AllTrades walks the trade pages until the server reports no more.
func (c *Client) AllTrades(ctx context.Context) ([]Trade, error) {
	var all []Trade
	for page := 1; ; page++ {
		envelope, err := c.Trades(ctx, page)
		if err != nil {
			return nil, err
		}
		all = append(all, envelope.List...)
		if !envelope.More || len(envelope.List) == 0 {
			return all, nil
		}
	}
}

// tradeCardEntry is the wire shape of one card within a trade submission.
type tradeCardEntry struct {
	CardID string        `json:"cardId"`
	Type   TradeCardType `json:"type"`
}

// CreateTrade submits a new trade. The wire body lists OFFERING entries
// first, then RECEIVING; the server has never declared a requirement on that
// order but the shipped clients always sent it this way, so keep it.
func (c *Client) CreateTrade(ctx context.Context, offering, receiving []string) (*Trade, error) {
	if len(offering) == 0 {
		return nil, fmt.Errorf("api: at least one offering card is required")
	}
	if len(receiving) == 0 {
		return nil, fmt.Errorf("api: at least one receiving card is required")
	}

	cards := make([]tradeCardEntry, 0, len(offering)+len(receiving))
	for _, id := range offering {
		cards = append(cards, tradeCardEntry{CardID: id, Type: Offering})
	}
	for _, id := range receiving {
		cards = append(cards, tradeCardEntry{CardID: id, Type: Receiving})
	}

	payload := map[string][]tradeCardEntry{"cards": cards}
	var out Trade
	if err := c.do(ctx, http.MethodPost, "/trades", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTrade cancels a trade by id. A 204 from the server is success.
func (c *Client) DeleteTrade(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("api: trade id is required")
	}
	return c.do(ctx, http.MethodDelete, "/trades/"+url.PathEscape(id), nil, nil)
}
