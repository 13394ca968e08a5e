package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/financemonitor/internal/model"
	"github.com/rickgao/financemonitor/internal/writer"
)

// ReportWriter persists a parsed report.
type ReportWriter interface {
	Write(ctx context.Context, report *model.TreasuryReport, dryRun bool) (writer.FixedIncomeResult, error)
}

// Result is the outcome of a scrape.
type Result struct {
	ReportURL string                   `json:"report_url"`
	PDFURL    string                   `json:"pdf_url"`
	Tables    []Table                  `json:"tables"`
	Report    *model.TreasuryReport    `json:"report"`
	Written   writer.FixedIncomeResult `json:"written"`
}

// Scraper runs the fetch, parse and write steps.
type Scraper struct {
	site      *Site
	extractor TextExtractor
	writer    ReportWriter
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Scraper. A nil writer makes every run a dry run.
func New(site *Site, extractor TextExtractor, w ReportWriter, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	if extractor == nil {
		extractor = PDFText{}
	}
	return &Scraper{site: site, extractor: extractor, writer: w, logger: logger, now: time.Now}
}

// Fetch downloads the latest report and parses its tables.
func (s *Scraper) Fetch(ctx context.Context) (*Result, error) {
	reportURL, err := s.site.LatestReportURL(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("latest report", "url", reportURL)

	pdfURL, err := s.site.PDFURL(ctx, reportURL)
	if err != nil {
		return nil, err
	}

	data, err := s.site.DownloadPDF(ctx, pdfURL)
	if err != nil {
		return nil, err
	}

	text, err := s.extractor.ExtractText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	tables := ExtractTables(text, s.logger)
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: no tables found", ErrParse)
	}

	report := Transform(tables, s.now(), s.logger)
	report.SourceURL = pdfURL

	s.logger.Info("report parsed",
		"tables", len(tables),
		"instruments", len(report.FixedIncome),
		"duales", len(report.Duales),
	)
	return &Result{ReportURL: reportURL, PDFURL: pdfURL, Tables: tables, Report: report}, nil
}

// Run fetches the latest report and writes it. With dryRun set the writer
// only logs what it would do.
func (s *Scraper) Run(ctx context.Context, dryRun bool) (*Result, error) {
	res, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	if s.writer == nil {
		s.logger.Info("no warehouse writer configured, skipping load")
		res.Written.DryRun = true
		return res, nil
	}

	written, err := s.writer.Write(ctx, res.Report, dryRun)
	if err != nil {
		return res, fmt.Errorf("write report: %w", err)
	}
	res.Written = written
	return res, nil
}
