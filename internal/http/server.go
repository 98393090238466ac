package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"regdash/internal/analytics"
	"regdash/internal/log"
	"regdash/internal/middleware/ratelimit"
	"regdash/internal/middleware/security"
	"regdash/internal/middleware/trace"
	appweb "regdash/web"
)

// Dashboard assembles view models. *analytics.Assembler implements it.
type Dashboard interface {
	AssembleOrEmpty(ctx context.Context, p analytics.Params) (analytics.ViewModel, error)
	AssembleAll(ctx context.Context, asOf time.Time, recentLimit int) ([]analytics.ViewModel, error)
}

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server needs. Dashboard and Store are
// required; the rest are optional.
type Deps struct {
	Dashboard       Dashboard
	Store           Pinger
	Metrics         http.Handler
	RequestObserver trace.RequestObserver
	Logger          *log.Logger
	RateLimit       ratelimit.Config
	TrustedProxies  []string
	// Now is the clock used when a request does not pin asOf.
	Now func() time.Time
}

type Server struct {
	http.Server
	dashboard Dashboard
	store     Pinger
	templates *template.Template
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *log.Logger
	events    *log.StructuredLogger
	now       func() time.Time
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		dashboard: deps.Dashboard,
		store:     deps.Store,
		limiter:   ratelimit.NewLimiter(deps.RateLimit),
		detector:  security.NewDetector(),
		logger:    logger.WithComponent(log.ComponentDashboard),
		now:       now,
		started:   time.Now(),
	}
	s.events = log.NewStructuredLogger(s.logger)

	for _, cidr := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err,
				log.FieldComponent, log.ComponentSecurity)
		}
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", log.FieldError, err,
			log.FieldComponent, log.ComponentTemplate)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	limit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).Warn("Rate limit exceeded",
			log.FieldComponent, log.ComponentRateLimit,
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})
	api := func(h http.HandlerFunc) http.Handler {
		return limit(security.NoStore(h))
	}

	mux.Handle("/", limit(http.HandlerFunc(s.handleIndex)))
	mux.Handle("/api/dashboard", api(s.handleDashboard))
	mux.Handle("/api/dashboard/overview", api(s.handleOverview))
	mux.Handle("/api/dashboard/export", api(s.handleExport))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	if deps.Metrics != nil {
		mux.Handle("/metrics", deps.Metrics)
	}

	var observer trace.RequestObserver
	if deps.RequestObserver != nil {
		observer = routeObserver{next: deps.RequestObserver}
	}
	tracer := trace.NewMiddleware(logger, s.detector.ExtractClientIP, observer)

	var handler http.Handler = mux
	handler = s.flagSuspicious(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// flagSuspicious logs probing traffic. Requests still go through; the
// dashboard has nothing to protect beyond read access.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).Warn("Suspicious request",
				log.FieldComponent, log.ComponentSecurity,
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// knownRoutes bounds the route label of request metrics.
var knownRoutes = []string{
	"/api/dashboard/overview",
	"/api/dashboard/export",
	"/api/dashboard",
	"/healthz",
	"/readyz",
	"/metrics",
}

type routeObserver struct {
	next trace.RequestObserver
}

func (o routeObserver) ObserveRequest(path string, status int) {
	o.next.ObserveRequest(routeLabel(path), status)
}

func routeLabel(path string) string {
	for _, r := range knownRoutes {
		if path == r {
			return r
		}
	}
	switch {
	case path == "/":
		return "/"
	case strings.HasPrefix(path, "/static/"):
		return "/static/"
	}
	return "other"
}
