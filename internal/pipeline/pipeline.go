// Package pipeline cleans and checks products between extraction and the sink.
package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/SeedGoat/internal/config"
	"github.com/IshaanNene/SeedGoat/internal/types"
)

// Middleware is one stage. Process may modify p in place; returning a nil
// product drops it without an error.
type Middleware interface {
	Name() string
	Process(p *types.Product) (*types.Product, error)
}

// Func adapts a plain function to Middleware.
type Func struct {
	name string
	fn   func(*types.Product) (*types.Product, error)
}

func NewFunc(name string, fn func(*types.Product) (*types.Product, error)) Func {
	return Func{name: name, fn: fn}
}

func (f Func) Name() string { return f.name }

func (f Func) Process(p *types.Product) (*types.Product, error) { return f.fn(p) }

// Pipeline runs its stages in the order they were added.
type Pipeline struct {
	stages []Middleware
	logger *slog.Logger
}

func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{logger: logger.With("component", "pipeline")}
}

// FromConfig builds the default chain: optional entity decoding, trimming,
// the required-field check and, when enabled, the quote guard.
func FromConfig(cfg config.PipelineConfig, logger *slog.Logger) *Pipeline {
	p := New(logger)
	if cfg.DecodeEntities {
		p.Use(NewHTMLSanitizer())
	}
	p.Use(Trim(), RequireFields())
	if cfg.RejectUnsafeTitles {
		p.Use(QuoteGuard())
	}
	return p
}

func (p *Pipeline) Use(stages ...Middleware) {
	p.stages = append(p.stages, stages...)
}

func (p *Pipeline) Len() int { return len(p.stages) }

// Process returns the product after every stage, nil if a stage dropped it,
// or a *types.PipelineError naming the stage that failed.
func (p *Pipeline) Process(product *types.Product) (*types.Product, error) {
	for _, stage := range p.stages {
		next, err := stage.Process(product)
		if err != nil {
			return nil, &types.PipelineError{Stage: stage.Name(), Product: product, Err: err}
		}
		if next == nil {
			p.logger.Debug("dropped", "stage", stage.Name(), "source", product.SourceURL)
			return nil, nil
		}
		product = next
	}
	return product, nil
}
