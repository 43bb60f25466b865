package inference

import (
	"errors"
	"log/slog"

	"github.com/nvr-ai/go-matte/models/model/preprocess"
)

// PipelineBuilder assembles a Pipeline with a fluent API.
type PipelineBuilder struct {
	backend Backend
	config  *preprocess.Config
	logger  *slog.Logger
	err     error
}

// NewPipelineBuilder creates a new pipeline builder.
//
// Returns:
//   - *PipelineBuilder: The pipeline builder.
func NewPipelineBuilder() *PipelineBuilder {
	return &PipelineBuilder{}
}

// WithBackend sets the backend, or records the error that occurred creating it.
//
// Arguments:
//   - backend: The backend.
//   - err: The backend constructor's error, if any.
//
// Returns:
//   - *PipelineBuilder: The pipeline builder.
func (b *PipelineBuilder) WithBackend(backend Backend, err error) *PipelineBuilder {
	if b.HasError() {
		return b
	}
	if err != nil {
		b.err = err
		return b
	}
	b.backend = backend
	return b
}

// WithConfig sets the preprocessing configuration.
//
// Arguments:
//   - resolve: Produces the configuration. It receives the backend's fixed input size when the
//     backend reports one.
//
// Returns:
//   - *PipelineBuilder: The pipeline builder.
func (b *PipelineBuilder) WithConfig(resolve func(height, width int, fixed bool) (preprocess.Config, error)) *PipelineBuilder {
	if b.HasError() {
		return b
	}

	var h, w int
	var fixed bool
	if sizer, ok := b.backend.(InputSizer); ok {
		h, w, fixed = sizer.InputSize()
	}

	cfg, err := resolve(h, w, fixed)
	if err != nil {
		b.err = err
		return b
	}
	b.config = &cfg
	return b
}

// WithLogger sets the logger.
func (b *PipelineBuilder) WithLogger(logger *slog.Logger) *PipelineBuilder {
	b.logger = logger
	return b
}

// HasError checks if the pipeline builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *PipelineBuilder) HasError() bool {
	return b.err != nil
}

// Build builds the pipeline. On failure any backend already created is closed.
//
// Returns:
//   - *Pipeline: The pipeline.
//   - error: The first error recorded, or a missing component.
func (b *PipelineBuilder) Build() (*Pipeline, error) {
	if !b.HasError() {
		switch {
		case b.backend == nil:
			b.err = errors.New("backend not configured")
		case b.config == nil:
			b.err = errors.New("preprocessing config not configured")
		}
	}
	if b.HasError() {
		if b.backend != nil {
			b.backend.Close()
		}
		return nil, b.err
	}

	return &Pipeline{Config: *b.config, Backend: b.backend, Logger: b.logger}, nil
}
