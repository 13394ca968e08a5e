package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/financemonitor/internal/model"
	"github.com/rickgao/financemonitor/internal/scraper"
)

// IOLService reads data from InvertirOnline.
type IOLService interface {
	ListFCI(ctx context.Context) (json.RawMessage, error)
	DailyQuotes(ctx context.Context) (map[string]json.RawMessage, error)
}

// QuoteService returns the latest daily quote of a symbol.
type QuoteService interface {
	LatestDaily(ctx context.Context, symbol string) (*model.Quote, error)
}

// BatchWriter loads validated quote records.
type BatchWriter interface {
	Write(ctx context.Context, records []model.QuoteRecord) (int64, error)
}

// StreamWriter commits records through the streaming API.
type StreamWriter interface {
	Write(ctx context.Context, records []model.StreamRecord) (int64, error)
}

// ReportScraper fetches and optionally loads the treasury report.
type ReportScraper interface {
	Fetch(ctx context.Context) (*scraper.Result, error)
	Run(ctx context.Context, dryRun bool) (*scraper.Result, error)
}

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the routes. Any of them may be nil.
type Deps struct {
	IOL          IOLService
	AlphaVantage QuoteService
	Batch        BatchWriter
	Stream       StreamWriter
	LECAP        ReportScraper
	Warehouse    Pinger
}

// Server is the HTTP API.
type Server struct {
	deps   Deps
	engine *gin.Engine
	http   *http.Server
	logger *slog.Logger
}

// New creates a server listening on port.
func New(port int, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		deps:   deps,
		engine: engine,
		logger: logger,
	}
	s.routes()

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleRoot)
	s.engine.GET("/health", s.handleHealth)

	s.engine.GET("/iol", s.handleIOL)
	s.engine.POST("/iol", s.handleIOL)
	s.engine.GET("/iol/quotes", s.handleIOLQuotes)

	s.engine.GET("/alpha-vantage", s.handleAlphaVantageGet)
	s.engine.POST("/alpha-vantage", s.handleAlphaVantagePost)

	s.engine.POST("/bq-batch-load", s.handleBatchLoad)
	s.engine.POST("/bq-stream-write", s.handleStreamWrite)

	s.engine.GET("/lecaps", s.handleLecaps)
	s.engine.GET("/lecaps/test", s.handleLecapsHTML)

	s.engine.NoMethod(func(c *gin.Context) {
		if c.Request.URL.Path == "/bq-batch-load" {
			c.JSON(http.StatusMethodNotAllowed, gin.H{"error": msgBatchOnlyJSON})
			return
		}
		c.String(http.StatusMethodNotAllowed, "Only POST requests are accepted")
	})
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("starting http server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.Error("request", attrs...)
		case status >= 400:
			logger.Warn("request", attrs...)
		default:
			logger.Info("request", attrs...)
		}
	}
}
