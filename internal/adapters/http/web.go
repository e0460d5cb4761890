package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"crewportal/internal/adapters/email"
	"crewportal/internal/adapters/http/middleware"
	"crewportal/internal/adapters/http/perf"
	"crewportal/internal/adapters/storage/devicestate"
	feedbackStore "crewportal/internal/adapters/storage/feedback"
	"crewportal/internal/application/crewcache"
	"crewportal/internal/application/favourites"
	"crewportal/internal/application/orchestrators"
	"crewportal/internal/config"
	"crewportal/internal/domain/flight"
)

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// API is the crew API surface the portal pages call.
type API interface {
	orchestrators.RegistrationStarter
	orchestrators.PasswordSetter
	orchestrators.ProfileSaver
	crewcache.ProfileFetcher
	NextFlight(ctx context.Context, token, psn string) (flight.Flight, error)
}

// Deps holds the collaborators of the portal.
type Deps struct {
	API       API
	Device    devicestate.Store
	Feedback  feedbackStore.Store
	Sender    email.Sender
	Collector *perf.Collector
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server holds everything the handlers share. One Server serves the
// whole process.
type Server struct {
	cfg       *config.Config
	api       API
	device    devicestate.Store
	feedback  feedbackStore.Store
	sender    email.Sender
	collector *perf.Collector
	sessions  *middleware.SessionStore
	favs      *favourites.Manager
	pages     map[string]*template.Template
	contract  template.HTML
	csrfKey   []byte
	now       func() time.Time
}

// NewServer parses the page templates and derives the CSRF key.
// PRE: cfg is validated; deps.API and deps.Device are set
// POST: returns a Server ready for Handler, or the first setup error
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.API == nil || deps.Device == nil {
		return nil, fmt.Errorf("web: API and device store are required")
	}
	csrfKey, err := cfg.DeriveKey(config.PurposeCSRF)
	if err != nil {
		return nil, err
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	contract, err := renderContractTerms()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		api:       deps.API,
		device:    deps.Device,
		feedback:  deps.Feedback,
		sender:    deps.Sender,
		collector: deps.Collector,
		favs:      favourites.NewManager(deps.Device),
		pages:     pages,
		contract:  contract,
		csrfKey:   csrfKey,
		now:       deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.sessions = middleware.NewSessionStore(func() *crewcache.Cache {
		return crewcache.New(deps.API)
	})
	return s, nil
}

// Sessions returns the in-memory session store.
func (s *Server) Sessions() *middleware.SessionStore {
	return s.sessions
}

// Handler wires the routes and the middleware chain. ctx bounds the
// background sweep of the per-IP rate limiter.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	s.registerRoutes(mux)

	secure := s.cfg.Server.SecureCookies
	limiter := middleware.NewRateLimiter(ctx, s.cfg.Server.RateLimitPerSecond, s.cfg.Server.RateLimitBurst)

	// Timing -> RateLimit -> SecurityHeaders -> Device -> Session -> CSRF -> Mux
	return middleware.Chain(mux,
		middleware.CSRF(s.csrfKey, secure, s.cfg.Server.TrustedOrigins),
		middleware.Session(s.sessions, secure),
		middleware.Device(secure),
		middleware.SecurityHeaders,
		middleware.RateLimit(limiter),
		middleware.Timing(s.collector, s.cfg.Server.SlowRequest),
	)
}

// SweepSessions drops idle sessions every interval until ctx is done.
func (s *Server) SweepSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Sweep(); n > 0 {
				slog.Info("sessions_swept", "count", n, "remaining", s.sessions.Len())
			}
		}
	}
}
