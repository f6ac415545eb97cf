package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"docqa/aggregator"
	"docqa/answer"
	"docqa/cache"
	"docqa/core"
	"docqa/db"
	"docqa/docformat"
	"docqa/document"
	"docqa/extractors"
	"docqa/logging"
	"docqa/ocrprocessor"
	"docqa/pdfprocessor"
	"docqa/sanitizer"
	"docqa/scraper"
)

// DefaultMaxConcurrentFiles bounds parallel extractions per ingest.
const DefaultMaxConcurrentFiles = 3

// HistoryRecorder receives one record per processed file. *db.HistoryWriter
// satisfies it.
type HistoryRecorder interface {
	Record(rec db.ExtractionRecord) error
}

// Pipeline holds the stateless, shared processing components. It is safe
// for concurrent use by many sessions.
type Pipeline struct {
	registry      *extractors.Registry
	cache         cache.ExtractionCache
	aggregator    *aggregator.Aggregator
	scraper       scraper.Scraper
	answerer      answer.Service
	history       HistoryRecorder
	maxConcurrent int
	logger        *logging.Logger
}

// PipelineOptions wires a Pipeline. Registry and Answerer are required;
// the rest default to no-ops or package defaults.
type PipelineOptions struct {
	Registry      *extractors.Registry
	Cache         cache.ExtractionCache
	Aggregator    *aggregator.Aggregator
	Scraper       scraper.Scraper
	Answerer      answer.Service
	History       HistoryRecorder
	MaxConcurrent int
	Logger        *logging.Logger
}

// NewPipeline builds a Pipeline from opts.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Registry == nil {
		return nil, errors.New("session: registry is required")
	}
	if opts.Answerer == nil {
		return nil, errors.New("session: answer service is required")
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.Aggregator == nil {
		opts.Aggregator = aggregator.New(0, 0)
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrentFiles
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Pipeline{
		registry:      opts.Registry,
		cache:         opts.Cache,
		aggregator:    opts.Aggregator,
		scraper:       opts.Scraper,
		answerer:      opts.Answerer,
		history:       opts.History,
		maxConcurrent: opts.MaxConcurrent,
		logger:        opts.Logger.Named("session"),
	}, nil
}

// BuildPipeline assembles the production pipeline from cfg. store and
// history may be nil when persistence is disabled.
func BuildPipeline(cfg *core.Config, logger *logging.Logger, store cache.Store, history HistoryRecorder) (*Pipeline, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	san := sanitizer.New(sanitizer.Config{
		ExtraSymbols:         cfg.Pipeline.ExtraSymbols,
		ReadabilityThreshold: cfg.ReadabilityThreshold,
	})

	opts := pdfprocessor.StrategyOptions{}
	if cfg.OCREnabled() {
		ocr, err := ocrprocessor.NewClient(cfg.OCRAPIKey, core.GetDefaultHTTPClient(cfg), logger, ocrprocessor.ConfigFromCore(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to create OCR client: %w", err)
		}
		opts.Recognizer = ocr
		opts.OCRSource = ocr.Source()
	}

	strategies, err := pdfprocessor.BuildStrategies(cfg.Pipeline.Strategies, opts)
	if err != nil {
		return nil, err
	}
	chain := pdfprocessor.NewChain(pdfprocessor.ChainConfig{
		MinLength: cfg.MinExtractedChars,
		Sanitizer: san,
		Logger:    logger,
	}, strategies...)

	registry := extractors.NewRegistry(san)
	registry.Register(docformat.PDF, chain)

	extractionCache, err := cache.New(cfg.ExtractionCacheSize, store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction cache: %w", err)
	}

	responder := answer.NewResponder(
		answer.NewOpenAIClient(answer.ClientConfigFromCore(cfg)),
		answer.ConfigFromCore(cfg),
		logger,
	)

	return NewPipeline(PipelineOptions{
		Registry:      registry,
		Cache:         extractionCache,
		Aggregator:    aggregator.New(cfg.MaxContextChars, cfg.SummaryMaxChars),
		Scraper:       scraper.New(scraper.OptionsFromConfig(cfg, logger, san)),
		Answerer:      responder,
		History:       history,
		MaxConcurrent: cfg.MaxConcurrentFiles,
		Logger:        logger,
	})
}

// ProcessFile detects, extracts and summarizes one file. Cached results are
// reused for identical bytes of the same format.
func (p *Pipeline) ProcessFile(ctx context.Context, sessionID string, file document.SourceFile) (*document.ProcessedDocument, error) {
	start := time.Now()
	rec := db.ExtractionRecord{
		CorrelationID: core.NewCorrelationID(),
		SessionID:     sessionID,
		FileName:      file.Name,
	}
	log := p.logger.With(zap.String("correlation_id", rec.CorrelationID), zap.String("file", file.Name))

	res, err := p.extract(ctx, file, &rec)
	rec.Duration = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rec.ErrorCode = core.GetErrorCode(err)
		rec.ErrorMessage = err.Error()
		p.record(rec)
		log.Warn("file rejected", zap.String("code", rec.ErrorCode), zap.Error(err))
		return nil, err
	}

	rec.Success = true
	rec.Strategy = res.Strategy
	rec.Source = string(res.Source)
	rec.ContentLength = res.Length
	p.record(rec)
	log.Info("file processed",
		zap.String("format", rec.Format),
		zap.String("strategy", res.Strategy),
		zap.Int("length", res.Length),
		zap.Duration("duration", rec.Duration))

	return &document.ProcessedDocument{
		Name:     file.Name,
		Content:  res.Text,
		Summary:  p.aggregator.Summarize(res.Text),
		Source:   res.Source,
		Strategy: res.Strategy,
	}, nil
}

func (p *Pipeline) extract(ctx context.Context, file document.SourceFile, rec *db.ExtractionRecord) (*document.ExtractionResult, error) {
	format, extractor, err := p.registry.Detect(file)
	rec.Format = string(format)
	if err != nil {
		return nil, err
	}

	key := cache.Key{Hash: core.ContentHash(file.Data), Format: string(format)}
	if res, ok := p.cache.Get(ctx, key); ok {
		rec.Strategy = res.Strategy
		return res, nil
	}

	res, err := extractor.Extract(ctx, file)
	if err != nil {
		return nil, err
	}
	p.cache.Put(ctx, key, res)
	return res, nil
}

func (p *Pipeline) record(rec db.ExtractionRecord) {
	if p.history == nil {
		return
	}
	if err := p.history.Record(rec); err != nil {
		p.logger.Debug("history not recorded", zap.Error(err))
	}
}

// Scrape fetches url through the configured scraper.
func (p *Pipeline) Scrape(ctx context.Context, url string) (*document.ScrapedWebsite, error) {
	if p.scraper == nil {
		return nil, core.ErrService("website scraping", url, errors.New("no scraper configured"))
	}
	return p.scraper.Scrape(ctx, url)
}

// Aggregator returns the bundle builder.
func (p *Pipeline) Aggregator() *aggregator.Aggregator { return p.aggregator }

// MaxConcurrent returns the per-ingest parallelism.
func (p *Pipeline) MaxConcurrent() int { return p.maxConcurrent }
