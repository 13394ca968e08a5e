package scraper

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// Page selectors of the IAMC site.
const (
	ReportLinkSelector = "div.contenidoListado.Acceso-Rapido a"
	PDFLinkSelector    = "a.pdfDownload"
)

// Stage errors. Callers use errors.Is to tell which step failed.
var (
	ErrReportURL = errors.New("failed to get the latest report URL")
	ErrPDFURL    = errors.New("failed to get the PDF URL")
	ErrDownload  = errors.New("failed to download the PDF")
	ErrParse     = errors.New("failed to parse the PDF")
)

// Site fetches report pages and PDFs from the IAMC website.
type Site struct {
	client      *resty.Client
	baseURL     string
	reportsPath string
	logger      *slog.Logger
}

// SiteOption configures a Site.
type SiteOption func(*Site)

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) SiteOption {
	return func(s *Site) {
		s.client.SetTimeout(d)
	}
}

// WithInsecureSkipVerify disables TLS certificate verification. The IAMC
// site has served an incomplete certificate chain.
func WithInsecureSkipVerify(skip bool) SiteOption {
	return func(s *Site) {
		if skip {
			s.client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) SiteOption {
	return func(s *Site) {
		s.client = resty.NewWithClient(hc)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SiteOption {
	return func(s *Site) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSite creates a Site for baseURL. Options are applied in order, so
// WithHTTPClient should come before the options that tune the client.
func NewSite(baseURL, reportsPath string, opts ...SiteOption) *Site {
	s := &Site{
		client:      resty.New().SetTimeout(60 * time.Second),
		baseURL:     strings.TrimRight(baseURL, "/"),
		reportsPath: reportsPath,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.client.SetHeader("User-Agent", "financemonitor")
	return s
}

// LatestReportURL returns the absolute URL of the newest report page.
func (s *Site) LatestReportURL(ctx context.Context) (string, error) {
	listing := s.baseURL + s.reportsPath
	doc, err := s.document(ctx, listing)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrReportURL, err)
	}

	href, ok := doc.Find(ReportLinkSelector).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", fmt.Errorf("%w: no link matching %q on %s", ErrReportURL, ReportLinkSelector, listing)
	}
	return resolve(s.baseURL, href)
}

// PDFURL returns the absolute URL of the PDF linked from a report page.
func (s *Site) PDFURL(ctx context.Context, reportURL string) (string, error) {
	doc, err := s.document(ctx, reportURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPDFURL, err)
	}

	href, ok := doc.Find(PDFLinkSelector).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", fmt.Errorf("%w: no link matching %q on %s", ErrPDFURL, PDFLinkSelector, reportURL)
	}
	return resolve(reportURL, href)
}

// DownloadPDF returns the bytes at pdfURL.
func (s *Site) DownloadPDF(ctx context.Context, pdfURL string) ([]byte, error) {
	body, err := s.get(ctx, pdfURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownload, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body from %s", ErrDownload, pdfURL)
	}
	s.logger.Info("pdf downloaded", "url", pdfURL, "bytes", len(body))
	return body, nil
}

func (s *Site) document(ctx context.Context, u string) (*goquery.Document, error) {
	body, err := s.get(ctx, u)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html from %s: %w", u, err)
	}
	return doc, nil
}

func (s *Site) get(ctx context.Context, u string) ([]byte, error) {
	resp, err := s.client.R().SetContext(ctx).Get(u)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get %s: status %d", u, resp.StatusCode())
	}
	return resp.Body(), nil
}

// resolve returns href as an absolute URL relative to base.
func resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", href, err)
	}
	return b.ResolveReference(h).String(), nil
}
