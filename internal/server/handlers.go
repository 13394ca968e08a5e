package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/financemonitor/internal/auth"
	"github.com/rickgao/financemonitor/internal/iol"
	"github.com/rickgao/financemonitor/internal/model"
	"github.com/rickgao/financemonitor/internal/scraper"
	"github.com/rickgao/financemonitor/internal/version"
	"github.com/rickgao/financemonitor/internal/writer"
)

// Response messages. Clients match on these strings.
const (
	msgRunning = "Finance Monitor API is running!"

	msgIOLMissingCredentials = "Server configuration error: Missing credentials."
	msgIOLAuthFailed         = "Authentication failed."
	msgIOLFailed             = "Failed to retrieve data from IOL API."

	msgMissingSymbol = "Missing 'symbol' query parameter."
	msgMissingList   = "Request body must contain a non-empty 'symbols' list."
	msgInternal      = "Internal Server Error"

	msgBatchOnlyJSON   = "Only POST/json requests are accepted."
	msgBatchNotList    = "Invalid request payload: 'symbols' must be a list."
	msgBatchNoData     = "No valid data to load."
	msgBatchInternal   = "Internal Server Error."
	msgStreamBadBody   = "Invalid JSON payload: expected a list of records."
	msgStreamNoClient  = "Internal server error: BigQuery client unavailable"
	msgStreamInternal  = "An internal error occurred."
	msgLecapsWriteFail = "Failed to load data to BigQuery."
	msgLecapsNoScraper = "Scraper is not configured."
)

const healthTimeout = 5 * time.Second

func (s *Server) handleRoot(c *gin.Context) {
	c.String(http.StatusOK, msgRunning)
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]any    `json:"components"`
	Version    version.BuildInfo `json:"version"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := healthResponse{
		Status:     "healthy",
		Components: map[string]any{},
		Version:    version.Info(),
	}

	if s.deps.Warehouse != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := s.deps.Warehouse.Ping(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Components["warehouse"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			resp.Components["warehouse"] = "connected"
		}
	}

	resp.Components["iol"] = configured(s.deps.IOL != nil)
	resp.Components["alpha_vantage"] = configured(s.deps.AlphaVantage != nil)
	resp.Components["scraper"] = configured(s.deps.LECAP != nil)

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func (s *Server) handleIOL(c *gin.Context) {
	if s.deps.IOL == nil {
		c.String(http.StatusInternalServerError, msgIOLMissingCredentials)
		return
	}

	data, err := s.deps.IOL.ListFCI(c.Request.Context())
	if err != nil {
		s.iolError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (s *Server) handleIOLQuotes(c *gin.Context) {
	if s.deps.IOL == nil {
		c.String(http.StatusInternalServerError, msgIOLMissingCredentials)
		return
	}

	quotes, err := s.deps.IOL.DailyQuotes(c.Request.Context())
	if err != nil {
		s.iolError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotes)
}

func (s *Server) iolError(c *gin.Context, err error) {
	_ = c.Error(err)

	var authErr *iol.AuthError
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		c.String(http.StatusInternalServerError, msgIOLMissingCredentials)
	case errors.As(err, &authErr):
		c.String(http.StatusInternalServerError, msgIOLAuthFailed)
	default:
		c.String(http.StatusInternalServerError, msgIOLFailed)
	}
}

func (s *Server) handleAlphaVantageGet(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingSymbol})
		return
	}
	if s.deps.AlphaVantage == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}

	quote, err := s.deps.AlphaVantage.LatestDaily(c.Request.Context(), symbol)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}
	c.JSON(http.StatusOK, quote)
}

type symbolsRequest struct {
	Symbols []string `json:"symbols"`
}

type symbolFailure struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

type quotesResponse struct {
	Quotes []*model.Quote  `json:"quotes"`
	Failed []symbolFailure `json:"failed"`
}

func (s *Server) handleAlphaVantagePost(c *gin.Context) {
	var req symbolsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingList})
		return
	}
	if s.deps.AlphaVantage == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
		return
	}

	resp := quotesResponse{
		Quotes: []*model.Quote{},
		Failed: []symbolFailure{},
	}
	for _, symbol := range req.Symbols {
		symbol = strings.TrimSpace(symbol)
		quote, err := s.deps.AlphaVantage.LatestDaily(c.Request.Context(), symbol)
		if err != nil {
			s.logger.Warn("alpha vantage quote failed", "symbol", symbol, "error", err)
			resp.Failed = append(resp.Failed, symbolFailure{Symbol: symbol, Error: err.Error()})
			continue
		}
		resp.Quotes = append(resp.Quotes, quote)
	}

	if len(resp.Quotes) == 0 {
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleBatchLoad(c *gin.Context) {
	if c.ContentType() != "application/json" {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": msgBatchOnlyJSON})
		return
	}

	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgBatchNotList})
		return
	}
	var raw []json.RawMessage
	field, ok := body["symbols"]
	if !ok || json.Unmarshal(field, &raw) != nil || raw == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgBatchNotList})
		return
	}

	records, err := writer.ParseQuoteRecords(raw)
	if err != nil {
		var vErr *writer.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message, "details": vErr.Details})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgBatchInternal})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": msgBatchNoData})
		return
	}
	if s.deps.Batch == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgBatchInternal})
		return
	}

	n, err := s.deps.Batch.Write(c.Request.Context(), records)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgBatchInternal})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%d records loaded successfully.", n)})
}

func (s *Server) handleStreamWrite(c *gin.Context) {
	if s.deps.Stream == nil {
		c.String(http.StatusInternalServerError, msgStreamNoClient)
		return
	}

	var records []model.StreamRecord
	if err := c.ShouldBindJSON(&records); err != nil {
		c.String(http.StatusBadRequest, msgStreamBadBody)
		return
	}

	n, err := s.deps.Stream.Write(c.Request.Context(), records)
	if err != nil {
		var vErr *writer.ValidationError
		if errors.As(err, &vErr) {
			c.String(http.StatusBadRequest, vErr.Error())
			return
		}
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, msgStreamInternal)
		return
	}
	c.String(http.StatusOK, "Data (%d records) batch-loaded successfully into BigQuery.", n)
}

func (s *Server) handleLecaps(c *gin.Context) {
	if s.deps.LECAP == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgLecapsNoScraper})
		return
	}

	dryRun, _ := strconv.ParseBool(c.DefaultQuery("dry_run", "false"))
	res, err := s.deps.LECAP.Run(c.Request.Context(), dryRun)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": scrapeMessage(err)})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleLecapsHTML(c *gin.Context) {
	if s.deps.LECAP == nil {
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", errorPage(msgLecapsNoScraper))
		return
	}

	res, err := s.deps.LECAP.Fetch(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", errorPage(scrapeMessage(err)))
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := scraper.RenderHTML(c.Writer, res.Tables); err != nil {
		s.logger.Error("render report html", "error", err)
	}
}

// scrapeMessage maps a scraper failure to the message of its stage.
func scrapeMessage(err error) string {
	switch {
	case errors.Is(err, scraper.ErrReportURL):
		return "Failed to get the latest report URL."
	case errors.Is(err, scraper.ErrPDFURL):
		return "Failed to get the PDF URL."
	case errors.Is(err, scraper.ErrDownload):
		return "Failed to download the PDF."
	case errors.Is(err, scraper.ErrParse):
		return "Failed to parse the PDF."
	default:
		return msgLecapsWriteFail
	}
}

func errorPage(msg string) []byte {
	return []byte("<h1>Error: " + html.EscapeString(msg) + "</h1>")
}
