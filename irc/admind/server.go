// Package admind serves the HTTP admin surface of an IRC server: health,
// Prometheus metrics and read-only JSON views of the controller and the
// event log.
package admind

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/presbrey/ircd/irc/eventlog"
	"github.com/presbrey/ircd/irc/server"
)

// StatsSource is the part of the controller the admin surface reads
type StatsSource interface {
	ServerName() string
	ClientCount() int
	ChannelCount() int
	Uptime() time.Duration
	Channels() []server.ChannelSummary
}

// EventSource lists recent event log rows
type EventSource interface {
	Recent(limit int) ([]eventlog.Record, error)
}

// Server is the admin HTTP server
type Server struct {
	addr     string
	stats    StatsSource
	events   EventSource
	registry *prometheus.Registry
	echo     *echo.Echo

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// Mount is the routing surface shared by *echo.Echo and *echo.Group
type Mount interface {
	Use(middleware ...echo.MiddlewareFunc)
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	Group(prefix string, m ...echo.MiddlewareFunc) *echo.Group
}

var (
	_ Mount = (*echo.Echo)(nil)
	_ Mount = (*echo.Group)(nil)
)

// Option configures a Server
type Option func(*Server)

// WithEventSource enables /api/events
func WithEventSource(events EventSource) Option {
	return func(s *Server) {
		s.events = events
	}
}

// WithRegistry serves and records into registry instead of a private one
func WithRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// New creates an admin server listening on addr once started
func New(addr string, stats StatsSource, opts ...Option) *Server {
	s := &Server{
		addr:  addr,
		stats: stats,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	factory := promauto.With(s.registry)
	s.requestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ircd_admin_requests_total",
		Help: "Admin HTTP requests by method, route and status code",
	}, []string{"method", "path", "code"})
	s.requestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ircd_admin_request_duration_seconds",
		Help:    "Admin HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.Register(s.echo)

	return s
}

// Register adds the admin routes and request metrics to m, so that they can
// also be served from an existing echo application
func (s *Server) Register(m Mount) {
	m.Use(s.instrument)
	m.GET("/healthz", s.handleHealth)
	m.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})))

	api := m.Group("/api")
	api.GET("/stats", s.handleStats)
	api.GET("/channels", s.handleChannels)
	api.GET("/events", s.handleEvents)
}

func (s *Server) instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		if err := next(c); err != nil {
			c.Error(err)
		}

		method := c.Request().Method
		path := c.Path()
		s.requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		s.requestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Response().Status)).Inc()
		return nil
	}
}

// ServeHTTP lets the admin routes be mounted or tested without a listener
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens and serves until Stop is called
func (s *Server) Start() error {
	log.Printf("Admin server listening on %s", s.addr)
	err := s.echo.Start(s.addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
