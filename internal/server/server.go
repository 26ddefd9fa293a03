package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/smartcart/internal/auth"
	"github.com/dukerupert/smartcart/internal/email"
	"github.com/dukerupert/smartcart/internal/grocery"
	"github.com/dukerupert/smartcart/internal/handler"
	"github.com/dukerupert/smartcart/internal/household"
	"github.com/dukerupert/smartcart/internal/middleware"
	"github.com/dukerupert/smartcart/internal/push"
	"github.com/dukerupert/smartcart/internal/shopping"
	"github.com/dukerupert/smartcart/internal/store"
	"github.com/dukerupert/smartcart/internal/suggest"
	ws "github.com/dukerupert/smartcart/internal/websocket"
)

// Config carries the settings the HTTP layer needs.
type Config struct {
	JWTSecret      string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	CORSOrigins    []string
	AuthRateLimit  int
	AuthRateWindow time.Duration
	Push           push.Config
	Email          email.Config
}

type Server struct {
	store       store.Store
	hub         *ws.Hub
	tokens      *auth.Tokens
	households  *household.Service
	authH       *handler.AuthHandler
	householdH  *handler.HouseholdHandler
	memberH     *handler.MemberHandler
	itemH       *handler.ItemHandler
	shoppingH   *handler.ShoppingHandler
	suggestionH *handler.SuggestionHandler
	pushH       *handler.PushHandler
	rateLimiter *middleware.RateLimiter
	corsOrigins []string
	logger      *slog.Logger
}

type options struct {
	now        func() time.Time
	httpClient *http.Client
}

type Option func(*options)

// WithClock replaces time.Now for token, item and suggestion timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithHTTPClient sets the client used for outbound e-mail and push calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func New(st store.Store, tracker shopping.Tracker, cfg Config, logger *slog.Logger, opts ...Option) *Server {
	o := options{now: time.Now, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.AuthRateLimit <= 0 {
		cfg.AuthRateLimit = 10
	}
	if cfg.AuthRateWindow <= 0 {
		cfg.AuthRateWindow = time.Minute
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL).WithClock(o.now)

	mailer := email.NewClient(cfg.Email, email.WithHTTPClient(o.httpClient))
	households := household.NewService(st, tracker, logger.With("component", "household"), household.WithMailer(mailer))
	groceries := grocery.NewService(st, tracker, logger.With("component", "grocery"), o.now)
	estimator := suggest.NewEstimator(st, st, o.now)

	// Push is optional; without VAPID keys its routes answer 404 and
	// shopping sessions notify nobody.
	var pushSvc *push.Service
	var notifier handler.ShoppingNotifier
	if cfg.Push.Enabled() {
		pushSvc = push.NewService(cfg.Push, push.WithHTTPClient(o.httpClient))
		notifier = push.NewNotifier(pushSvc, st, logger.With("component", "push"))
	}

	return &Server{
		store:       st,
		hub:         hub,
		tokens:      tokens,
		households:  households,
		authH:       handler.NewAuthHandler(st, tokens, logger.With("component", "auth")),
		householdH:  handler.NewHouseholdHandler(households, hub, logger.With("component", "household")),
		memberH:     handler.NewMemberHandler(households, hub, logger.With("component", "member")),
		itemH:       handler.NewItemHandler(households, groceries, hub, logger.With("component", "item")),
		shoppingH:   handler.NewShoppingHandler(households, groceries, hub, notifier, logger.With("component", "shopping")),
		suggestionH: handler.NewSuggestionHandler(households, estimator, groceries, logger.With("component", "suggestion")),
		pushH:       handler.NewPushHandler(st, pushSvc, logger.With("component", "push_handler")),
		rateLimiter: middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow),
		corsOrigins: cfg.CORSOrigins,
		logger:      logger,
	}
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RunCleanup prunes rate limiter state until ctx is done.
func (s *Server) RunCleanup(ctx context.Context) {
	s.rateLimiter.RunCleanup(ctx, 5*time.Minute)
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("POST /api/auth/register", s.rateLimited(s.authH.Register))
	outerMux.Handle("POST /api/auth/login", s.rateLimited(s.authH.Login))
	outerMux.Handle("POST /api/auth/refresh", s.rateLimited(s.authH.Refresh))

	// The WebSocket handshake authenticates itself from the query string.
	authorize := handler.WebSocketAuthorizer(s.tokens, s.households, s.logger.With("component", "websocket"))
	outerMux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, authorize, s.logger.With("component", "websocket")))

	// Protected routes wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)
	outerMux.Handle("/", middleware.RequireAuth(s.tokens)(protectedMux))

	var h http.Handler = outerMux
	h = middleware.CORS(s.corsOrigins)(h)
	h = middleware.Recover(s.logger.With("component", "http"))(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}` + "\n"))
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Households
	mux.HandleFunc("GET /api/households", s.householdH.List)
	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("POST /api/households/join", s.householdH.Join)
	mux.HandleFunc("PUT /api/households/{id}", s.householdH.Update)
	mux.HandleFunc("DELETE /api/households/{id}", s.householdH.Delete)
	mux.HandleFunc("POST /api/households/{id}/invite", s.householdH.Invite)
	mux.HandleFunc("POST /api/generate-invite-code", s.householdH.GenerateInviteCode)

	// Members
	mux.HandleFunc("GET /api/household-members", s.memberH.List)
	mux.HandleFunc("PUT /api/household-members", s.memberH.UpdateRole)
	mux.HandleFunc("DELETE /api/household-members", s.memberH.Remove)

	// Items
	mux.HandleFunc("GET /api/items", s.itemH.List)
	mux.HandleFunc("POST /api/items", s.itemH.Create)
	mux.HandleFunc("PUT /api/items/{id}", s.itemH.Update)
	mux.HandleFunc("DELETE /api/items/{id}", s.itemH.Delete)

	// Shopping session
	mux.HandleFunc("GET /api/shopping-status", s.shoppingH.Status)
	mux.HandleFunc("POST /api/shopping-status", s.shoppingH.Start)
	mux.HandleFunc("DELETE /api/shopping-status", s.shoppingH.Finish)

	// Suggestions and history
	mux.HandleFunc("GET /api/suggestions", s.suggestionH.Suggestions)
	mux.HandleFunc("GET /api/purchase-history", s.suggestionH.History)

	// Push notifications
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)

	mux.HandleFunc("/", handler.NotFound)
}
