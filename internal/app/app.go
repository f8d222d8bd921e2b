// Package app wires configuration, logging, the session store, the API
// client, and the query cache into one explicitly constructed object. There
// is no ambient global state: every dependency is created here and torn down
// by Close, so tests can run any number of independent instances.
package app

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/cardtrader/cardtrader/internal/api"
	"github.com/cardtrader/cardtrader/internal/config"
	"github.com/cardtrader/cardtrader/internal/query"
	"github.com/cardtrader/cardtrader/internal/session"
	"github.com/cardtrader/cardtrader/internal/validate"
	"github.com/cardtrader/cardtrader/pkg/logger"
)

// App is the assembled client.
type App struct {
	cfg      config.Config
	log      *logger.Logger
	sessions *session.Store
	prefs    *session.Prefs
	client   *api.Client
	cache    *query.Cache

	keyProfile string
	keyCatalog string
	keyOwned   string
	keyTrades  string
}

// New assembles an App from cfg. The session store is rehydrated before the
// client issues any network activity.
func New(cfg config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}

	sessions, err := session.Open(cfg.StateDir, log)
	if err != nil {
		return nil, fmt.Errorf("app: open session store: %w", err)
	}
	prefs, err := session.OpenPrefs(cfg.StateDir, log)
	if err != nil {
		return nil, fmt.Errorf("app: open preferences: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	var httpClient *http.Client
	if cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client, err := api.New(api.Config{
		BaseURL:     cfg.BaseURL,
		HTTPClient:  httpClient,
		TokenSource: sessions,
		PageSize:    cfg.PageSize,
		Limiter:     limiter,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("app: build api client: %w", err)
	}

	cache := query.New(query.Config{
		StaleAfter: cfg.StaleAfter,
		Logger:     log,
	})

	return &App{
		cfg:        cfg,
		log:        log,
		sessions:   sessions,
		prefs:      prefs,
		client:     client,
		cache:      cache,
		keyProfile: "/me",
		keyCatalog: fmt.Sprintf("/cards?rpp=%d", client.PageSize()),
		keyOwned:   "/me/cards",
		keyTrades:  fmt.Sprintf("/trades?rpp=%d", client.PageSize()),
	}, nil
}

// Close flushes the logger. Session and preference state is already on disk.
func (a *App) Close() {
	_ = a.log.Sync()
}

// Session returns a snapshot of the current session.
func (a *App) Session() session.Session { return a.sessions.Current() }

// Theme returns the persisted display preference.
func (a *App) Theme() session.Theme { return a.prefs.Theme() }

// SetTheme updates the persisted display preference.
func (a *App) SetTheme(t session.Theme) error { return a.prefs.SetTheme(t) }

// Login authenticates and, on success, stores the session and drops every
// cached read: all previously fetched data belonged to the old auth state.
func (a *App) Login(ctx context.Context, email, password string) (*api.User, error) {
	if err := validate.Login(email, password); err != nil {
		return nil, err
	}

	var auth *api.AuthResponse
	err := a.cache.Mutate(ctx, func(ctx context.Context) error {
		var err error
		auth, err = a.client.Login(ctx, email, password)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := a.sessions.SetAuth(auth.Token, auth.User); err != nil {
		return nil, err
	}
	a.cache.InvalidateAll()
	a.log.Infof("logged in as %s", auth.User.Email)
	return &auth.User, nil
}

// Register creates an account and logs it in.
func (a *App) Register(ctx context.Context, name, email, password, confirm string) (*api.User, error) {
	if err := validate.Register(name, email, password, confirm); err != nil {
		return nil, err
	}

	var auth *api.AuthResponse
	err := a.cache.Mutate(ctx, func(ctx context.Context) error {
		var err error
		auth, err = a.client.Register(ctx, name, email, password)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := a.sessions.SetAuth(auth.Token, auth.User); err != nil {
		return nil, err
	}
	a.cache.InvalidateAll()
	a.log.Infof("registered as %s", auth.User.Email)
	return &auth.User, nil
}

// Logout clears the session and every cached read.
func (a *App) Logout() error {
	if err := a.sessions.ClearAuth(); err != nil {
		return err
	}
	a.cache.InvalidateAll()
	return nil
}

// Profile returns the authenticated user's profile, cached.
func (a *App) Profile(ctx context.Context) (api.User, error) {
	user, err := query.GetTyped(ctx, a.cache, a.keyProfile, func(ctx context.Context) (api.User, error) {
		u, err := a.client.Me(ctx)
		if err != nil {
			return api.User{}, err
		}
		return *u, nil
	})
	return user, a.authFallout(err)
}

// Catalog returns the full card catalog, cached. All pages are traversed.
func (a *App) Catalog(ctx context.Context) ([]api.Card, error) {
	return query.GetTyped(ctx, a.cache, a.keyCatalog, func(ctx context.Context) ([]api.Card, error) {
		return a.client.AllCards(ctx)
	})
}

// CatalogPage returns a single catalog page, uncached.
func (a *App) CatalogPage(ctx context.Context, page int) (*api.Page[api.Card], error) {
	return a.client.Cards(ctx, page)
}

// CardDetails fetches one card by id, uncached.
func (a *App) CardDetails(ctx context.Context, id string) (*api.Card, error) {
	return a.client.Card(ctx, id)
}

// OwnedCards returns the user's collection, cached.
func (a *App) OwnedCards(ctx context.Context) ([]api.Card, error) {
	cards, err := query.GetTyped(ctx, a.cache, a.keyOwned, func(ctx context.Context) ([]api.Card, error) {
		return a.client.MyCards(ctx)
	})
	return cards, a.authFallout(err)
}

// TradeList returns all open trades, cached. All pages are traversed.
func (a *App) TradeList(ctx context.Context) ([]api.Trade, error) {
	return query.GetTyped(ctx, a.cache, a.keyTrades, func(ctx context.Context) ([]api.Trade, error) {
		return a.client.AllTrades(ctx)
	})
}

// AddCards adds cards to the collection and invalidates the cached collection.
func (a *App) AddCards(ctx context.Context, cardIDs []string) error {
	err := a.cache.Mutate(ctx, func(ctx context.Context) error {
		return a.client.AddCards(ctx, cardIDs)
	}, a.keyOwned)
	return a.authFallout(err)
}

// CreateTrade validates locally, submits the trade, and invalidates the
// cached trade list.
func (a *App) CreateTrade(ctx context.Context, offering, receiving []string) (*api.Trade, error) {
	if err := validate.NewTrade(offering, receiving); err != nil {
		return nil, err
	}

	var trade *api.Trade
	err := a.cache.Mutate(ctx, func(ctx context.Context) error {
		var err error
		trade, err = a.client.CreateTrade(ctx, offering, receiving)
		return err
	}, a.keyTrades)
	if err != nil {
		return nil, a.authFallout(err)
	}
	return trade, nil
}

// DeleteTrade cancels a trade and invalidates the cached trade list.
func (a *App) DeleteTrade(ctx context.Context, id string) error {
	err := a.cache.Mutate(ctx, func(ctx context.Context) error {
		return a.client.DeleteTrade(ctx, id)
	}, a.keyTrades)
	return a.authFallout(err)
}

// CacheStats exposes cache counters.
func (a *App) CacheStats() query.Stats { return a.cache.Stats() }

// authFallout handles the expired-token policy: any 401 clears the session
// and the cache, dropping back to the anonymous state. The error still
// surfaces to the caller.
func (a *App) authFallout(err error) error {
	if err == nil {
		return nil
	}
	if api.IsUnauthorized(err) && a.sessions.Current().Authenticated() {
		a.log.Warnf("session rejected by server, logging out")
		if clearErr := a.sessions.ClearAuth(); clearErr != nil {
			a.log.Errorf("clear session: %v", clearErr)
		}
		a.cache.InvalidateAll()
	}
	return err
}
