package core

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Strategy names accepted in the pipeline file.
const (
	StrategyStructured    = "structured"
	StrategyOCR           = "ocr"
	StrategyContentStream = "content-stream"
	StrategyStreamScan    = "stream-scan"
	StrategyRawScan       = "raw-scan"
)

// DefaultStrategyOrder is the PDF chain order used without a pipeline file.
var DefaultStrategyOrder = []string{
	StrategyStructured,
	StrategyOCR,
	StrategyContentStream,
	StrategyStreamScan,
	StrategyRawScan,
}

// PipelineSettings is the optional YAML pipeline file.
//
//	strategies: [structured, ocr, content-stream, stream-scan, raw-scan]
//	extra_symbols: "≥≤±°µ§"
//	min_length: 50
//	readability_threshold: 0.7
type PipelineSettings struct {
	Strategies           []string `yaml:"strategies" validate:"min=1,unique,dive,oneof=structured ocr content-stream stream-scan raw-scan"`
	ExtraSymbols         string   `yaml:"extra_symbols"`
	MinLength            int      `yaml:"min_length" validate:"gte=0"`
	ReadabilityThreshold float64  `yaml:"readability_threshold" validate:"gte=0,lt=1"`
}

// DefaultPipelineSettings returns the built-in strategy order.
func DefaultPipelineSettings() PipelineSettings {
	order := make([]string, len(DefaultStrategyOrder))
	copy(order, DefaultStrategyOrder)
	return PipelineSettings{Strategies: order}
}

// LoadPipelineSettings reads path, or returns the defaults when path is
// empty. Omitted keys keep their defaults.
func LoadPipelineSettings(path string) (PipelineSettings, error) {
	settings := DefaultPipelineSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, ErrPipelineConfig(path, "file not found")
		}
		return settings, ErrPipelineConfig(path, err.Error())
	}
	return ParsePipelineSettings(path, data)
}

// ParsePipelineSettings decodes YAML data. name is used in error messages.
func ParsePipelineSettings(name string, data []byte) (PipelineSettings, error) {
	settings := DefaultPipelineSettings()
	var file PipelineSettings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return settings, ErrPipelineConfig(name, fmt.Sprintf("yaml: %v", err))
	}

	if len(file.Strategies) > 0 {
		settings.Strategies = file.Strategies
	}
	settings.ExtraSymbols = file.ExtraSymbols
	settings.MinLength = file.MinLength
	settings.ReadabilityThreshold = file.ReadabilityThreshold

	if err := configValidator.Struct(settings); err != nil {
		return DefaultPipelineSettings(), ErrPipelineConfig(name, err.Error())
	}
	return settings, nil
}
