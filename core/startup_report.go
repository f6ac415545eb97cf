package core

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	reportHeader  = color.New(color.FgCyan, color.Bold)
	reportEnabled = color.New(color.FgGreen)
	reportOff     = color.New(color.FgYellow)
)

// PrintStartupReport writes a short colored summary of which optional
// services are active. Secrets are never printed.
func PrintStartupReport(w io.Writer, cfg *Config) {
	reportHeader.Fprintln(w, "docqa configuration")

	line := func(ok bool, name, detail string) {
		mark, c := "✓", reportEnabled
		if !ok {
			mark, c = "○", reportOff
		}
		c.Fprintf(w, "  %s %-18s %s\n", mark, name, detail)
	}

	answerDetail := cfg.AnswerModel
	if cfg.OpenAIBaseURL != "" {
		answerDetail = fmt.Sprintf("%s via %s", cfg.AnswerModel, cfg.OpenAIBaseURL)
	}
	line(cfg.OpenAIAPIKey != "", "answer service", answerDetail)

	if cfg.OCREnabled() {
		line(true, "ocr strategy", fmt.Sprintf("%s (%s, lang=%s)", cfg.OCRAPIURL, cfg.OCRRequestMode, cfg.OCRLanguage))
	} else {
		line(false, "ocr strategy", "disabled, set OCR_API_KEY to enable")
	}

	if cfg.ScrapeAPIEnabled() {
		line(true, "website scraping", cfg.FirecrawlAPIURL)
	} else {
		line(false, "website scraping", "direct fetch, set FIRECRAWL_API_KEY for the hosted API")
	}

	if cfg.PersistenceEnabled() {
		line(true, "persistence", cfg.DatabasePath)
	} else {
		line(false, "persistence", "disabled, set DATABASE_PATH to record history")
	}

	if cfg.APIAccessKey != "" {
		line(true, "api access key", "required")
	} else {
		line(false, "api access key", "not required, the API is open")
	}
	line(true, "pdf strategies", strings.Join(cfg.Pipeline.Strategies, " → "))
	line(true, "limits", fmt.Sprintf("context=%d chars, files=%d parallel, timeout=%s",
		cfg.MaxContextChars, cfg.MaxConcurrentFiles, cfg.ExternalTimeout))
}
