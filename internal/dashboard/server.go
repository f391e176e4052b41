// Package dashboard serves the ClimateSense web dashboard: an HTML page over
// the agent's memory log, a small JSON API, and Prometheus metrics.
package dashboard

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rafabd1/climatesense/internal/control"
	"github.com/rafabd1/climatesense/internal/memory"
	"github.com/rafabd1/climatesense/internal/metrics"
	"github.com/rafabd1/climatesense/internal/types"
	"github.com/rafabd1/climatesense/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

// LocationStore is the control file as the dashboard sees it.
type LocationStore interface {
	Read(ctx context.Context) (string, error)
	SetLocation(ctx context.Context, location string) error
}

// Locator guesses the host's location.
type Locator interface {
	Locate(ctx context.Context) (string, error)
}

type Config struct {
	Addr            string
	DefaultLocation string
	// MemoryFile is the memory log name shown in status messages.
	MemoryFile string
	CacheTTL   time.Duration
	// NextRun bounds how long until the agent processes a newly chosen location.
	NextRun  time.Duration
	TimeZone *time.Location
}

type Deps struct {
	Control  LocationStore
	Reports  ReportStore
	Locator  Locator
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   logger.Logger
}

type Server struct {
	cfg       Config
	control   LocationStore
	locator   Locator
	snapshots *snapshotCache
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	log       logger.Logger
	page      *template.Template
	router    *gin.Engine
	now       func() time.Time
}

func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Control == nil || deps.Reports == nil {
		return nil, errors.New("dashboard needs a control file and a report store")
	}
	if cfg.DefaultLocation == "" {
		return nil, errors.New("dashboard default location is required")
	}
	if cfg.MemoryFile == "" {
		cfg.MemoryFile = "memory_log.json"
	}
	if cfg.TimeZone == nil {
		cfg.TimeZone = time.Local
	}
	if cfg.NextRun <= 0 {
		cfg.NextRun = 30 * time.Minute
	}
	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse dashboard template")
	}
	s := &Server{
		cfg:       cfg,
		control:   deps.Control,
		locator:   deps.Locator,
		snapshots: newSnapshotCache(deps.Reports, cfg.CacheTTL),
		metrics:   deps.Metrics,
		gatherer:  deps.Gatherer,
		log:       log.With("component", "dashboard"),
		page:      page,
		now:       time.Now,
	}
	s.buildRouter()
	return s, nil
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(s.log, s.metrics))

	router.GET("/", s.handleIndex)
	router.POST("/location", s.handleSetLocationForm)
	router.POST("/refresh", s.handleRefresh)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	api.GET("/location", s.handleGetLocation)
	api.PUT("/location", s.handlePutLocation)
	api.GET("/reports", s.handleReports)
	api.GET("/reports/latest", s.handleLatestReport)

	s.router = router
}

// Location returns the location the dashboard is showing. When the control
// file is missing or unusable it falls back to IP geolocation and then to the
// default, and records the choice so the agent picks it up. Other read
// failures leave the file alone and show the default.
func (s *Server) Location(ctx context.Context) string {
	loc, err := s.control.Read(ctx)
	switch {
	case err == nil:
		return loc
	case !errors.Is(err, control.ErrNotFound) && !errors.Is(err, control.ErrInvalid):
		s.log.Warn("Could not read control file; showing default location", "error", err, "location", s.cfg.DefaultLocation)
		return s.cfg.DefaultLocation
	}
	loc = s.cfg.DefaultLocation
	if s.locator != nil {
		if found, err := s.locator.Locate(ctx); err != nil {
			s.log.Warn("Could not detect location; using default", "error", err, "location", loc)
		} else {
			loc = found
		}
	}
	if err := s.control.SetLocation(ctx, loc); err != nil {
		s.log.Error("Failed to write control file", "error", err)
	} else {
		s.log.Info("Initial location set", "location", loc)
	}
	return loc
}

func (s *Server) handleIndex(c *gin.Context) {
	ctx := c.Request.Context()
	loc := s.Location(ctx)
	snap := s.snapshots.Get(ctx, loc)
	page := buildPage(snap, s.cfg.MemoryFile, s.cfg.NextRun, s.cfg.TimeZone, s.now())
	page.Flash = c.Query("flash")

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(c.Writer, page); err != nil {
		_ = c.Error(err)
	}
}

func (s *Server) handleSetLocationForm(c *gin.Context) {
	loc := strings.TrimSpace(c.PostForm("location"))
	if loc == "" {
		c.Redirect(http.StatusSeeOther, "/?flash="+url.QueryEscape("Please enter a location."))
		return
	}
	if err := s.setLocation(c.Request.Context(), loc); err != nil {
		_ = c.Error(err)
		c.Redirect(http.StatusSeeOther, "/?flash="+url.QueryEscape("Failed to update location."))
		return
	}
	c.Redirect(http.StatusSeeOther, "/?flash="+url.QueryEscape("Location updated to "+loc+"."))
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.snapshots.Purge()
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleGetLocation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"location": s.Location(c.Request.Context())})
}

type locationRequest struct {
	Location string `json:"location" binding:"required"`
}

func (s *Server) handlePutLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Location) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location is required"})
		return
	}
	loc := strings.TrimSpace(req.Location)
	if err := s.setLocation(c.Request.Context(), loc); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update location"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": loc})
}

func (s *Server) setLocation(ctx context.Context, loc string) error {
	if err := s.control.SetLocation(ctx, loc); err != nil {
		return err
	}
	s.snapshots.Purge()
	s.log.Info("Location changed", "location", loc)
	return nil
}

func (s *Server) cityParam(c *gin.Context) string {
	if city := strings.TrimSpace(c.Query("city")); city != "" {
		return city
	}
	return s.Location(c.Request.Context())
}

func (s *Server) handleReports(c *gin.Context) {
	city := s.cityParam(c)
	snap := s.snapshots.Get(c.Request.Context(), city)
	if !s.snapshotOK(c, snap) {
		return
	}
	history := snap.History
	if history == nil {
		history = []types.LogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"city": city, "entries": history})
}

func (s *Server) handleLatestReport(c *gin.Context) {
	city := s.cityParam(c)
	snap := s.snapshots.Get(c.Request.Context(), city)
	if !s.snapshotOK(c, snap) {
		return
	}
	if snap.Latest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errors.Wrapf(memory.ErrNoEntries, "%q", city).Error()})
		return
	}
	c.JSON(http.StatusOK, snap.Latest)
}

func (s *Server) snapshotOK(c *gin.Context, snap *Snapshot) bool {
	switch {
	case snap.FileMissing:
		c.JSON(http.StatusNotFound, gin.H{"error": memory.ErrNotFound.Error()})
		return false
	case snap.Err != nil:
		_ = c.Error(snap.Err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reports"})
		return false
	}
	return true
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting dashboard", "address", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "dashboard server failed")
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Debug("Received shutdown signal, stopping dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "dashboard shutdown failed")
	}
	s.log.Info("Dashboard stopped")
	return nil
}
