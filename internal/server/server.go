package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"picbrand/internal/camera"
	"picbrand/internal/effects"
	"picbrand/internal/events"
	"picbrand/internal/gallery"
	"picbrand/internal/models"
	"picbrand/internal/printer"
)

type PortfolioStore interface {
	FetchPendingIDs(ctx context.Context) []int64
	TouchImpressed(ctx context.Context, id int64)
}

type PrinterLookup interface {
	Selected(ctx context.Context) (string, error)
}

type CameraProber interface {
	Probe() ([]int, error)
}

// Deps holds optional collaborators; nil ones answer 503.
type Deps struct {
	Portfolio PortfolioStore
	Printer   PrinterLookup
	Cameras   CameraProber
	Events    events.Publisher
	Logger    *zap.Logger
}

type Server struct {
	cfg       *models.Config
	router    *gin.Engine
	gallery   *gallery.Gallery
	portfolio PortfolioStore
	printer   PrinterLookup
	cameras   CameraProber
	events    events.Publisher
	logger    *zap.Logger
	http      *http.Server
}

func NewServer(cfg *models.Config, g *gallery.Gallery, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pub := deps.Events
	if pub == nil {
		pub = events.Nop{}
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		cfg:       cfg,
		router:    r,
		gallery:   g,
		portfolio: deps.Portfolio,
		printer:   deps.Printer,
		cameras:   deps.Cameras,
		events:    pub,
		logger:    logger.With(zap.String("component", "server")),
	}

	r.GET("/pending", s.handlePending)
	r.POST("/watch", s.handleWatch)
	r.GET("/filters", s.handleFilters)
	r.POST("/effects", s.handleApplyEffect)
	r.POST("/upload", s.handleUpload)
	r.GET("/printer", s.handlePrinter)
	r.POST("/print", s.handlePrint)
	r.GET("/cameras", s.handleCameras)
	r.POST("/capture", s.handleCapture)
	r.GET("/portfolio/pending", s.handlePortfolioPending)
	r.POST("/portfolio/:id/touch", s.handleTouch)

	s.http = &http.Server{Addr: cfg.ServerAddr, Handler: r}
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("control api listening", zap.String("addr", s.cfg.ServerAddr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Warn("control api shutdown", zap.Error(err))
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, effects.ErrUnknownFilter):
		return http.StatusBadRequest
	case errors.Is(err, gallery.ErrNoImages):
		return http.StatusConflict
	case errors.Is(err, printer.ErrNoDefaultPrinter):
		return http.StatusNotFound
	case errors.Is(err, gallery.ErrUnavailable), errors.Is(err, camera.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	s.logger.Error(op, zap.Error(err))
	c.JSON(statusFor(err), gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
}

func (s *Server) handlePending(c *gin.Context) {
	const op = "server.handlePending"

	images, err := s.gallery.PendingImages(c.Request.Context())
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"watching": s.gallery.WatchedDir(), "images": images})
}

type watchRequest struct {
	Folder string `json:"folder" binding:"required"`
}

func (s *Server) handleWatch(c *gin.Context) {
	const op = "server.handleWatch"

	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	if err := s.gallery.Watch(req.Folder); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"watching": req.Folder})
}

func (s *Server) handleFilters(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"filters": effects.Names()})
}

type effectRequest struct {
	Filter string `json:"filter" binding:"required"`
}

type effectResult struct {
	Source string `json:"source"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleApplyEffect(c *gin.Context) {
	const op = "server.handleApplyEffect"

	var req effectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	results, err := s.gallery.ApplyEffect(c.Request.Context(), req.Filter)
	if err != nil {
		s.fail(c, op, err)
		return
	}
	out := make([]effectResult, 0, len(results))
	for _, r := range results {
		er := effectResult{Source: r.Source, Output: r.Output}
		if r.Err != nil {
			er.Error = r.Err.Error()
		}
		out = append(out, er)
	}
	c.JSON(http.StatusOK, gin.H{"filter": req.Filter, "results": out})
}

func (s *Server) handleUpload(c *gin.Context) {
	const op = "server.handleUpload"

	ids, err := s.gallery.Upload(c.Request.Context())
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploaded": ids})
}

func (s *Server) handlePrinter(c *gin.Context) {
	const op = "server.handlePrinter"

	if s.printer == nil {
		s.fail(c, op, gallery.ErrUnavailable)
		return
	}
	name, err := s.printer.Selected(c.Request.Context())
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"printer": name})
}

func (s *Server) handlePrint(c *gin.Context) {
	const op = "server.handlePrint"

	job, err := s.gallery.PrintLast(c.Request.Context())
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *Server) handleCameras(c *gin.Context) {
	const op = "server.handleCameras"

	if s.cameras == nil {
		s.fail(c, op, gallery.ErrUnavailable)
		return
	}
	found, err := s.cameras.Probe()
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cameras": found})
}

type captureRequest struct {
	Dir string `json:"dir"`
}

func (s *Server) handleCapture(c *gin.Context) {
	const op = "server.handleCapture"

	var req captureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
			return
		}
	}
	if req.Dir == "" {
		req.Dir = s.cfg.CaptureDir
	}

	path, err := s.gallery.Capture(c.Request.Context(), req.Dir)
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (s *Server) handlePortfolioPending(c *gin.Context) {
	const op = "server.handlePortfolioPending"

	if s.portfolio == nil {
		s.fail(c, op, gallery.ErrUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ids": s.portfolio.FetchPendingIDs(c.Request.Context())})
}

func (s *Server) handleTouch(c *gin.Context) {
	const op = "server.handleTouch"

	if s.portfolio == nil {
		s.fail(c, op, gallery.ErrUnavailable)
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	s.portfolio.TouchImpressed(c.Request.Context(), id)

	ev := models.NewEvent(models.EventTouched, "")
	ev.ImageID = id
	if err := s.events.Publish(c.Request.Context(), ev); err != nil {
		s.logger.Warn("publish event failed", zap.Error(err))
	}
	c.Status(http.StatusAccepted)
}
