package parser

import (
	"time"

	"github.com/turtacn/molstruct/internal/domain/molecule"
	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molstruct/pkg/errors"
)

// Observer receives one call per engine attempt.  Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveAttempt(engine string, format Format, elapsed time.Duration, err error)
	ObserveFallback(format Format)
}

// Result is a successful parse together with how it was obtained.
type Result struct {
	Structure *molecule.Structure
	Format    Format
	Engine    string
	FellBack  bool
}

// Coordinator runs the primary engine and, for parse-domain failures, the
// fallback engine exactly once.
type Coordinator struct {
	primary  Engine
	fallback Engine
	logger   logging.Logger
	observer Observer
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithObserver attaches an attempt observer, typically metrics.
func WithObserver(o Observer) CoordinatorOption {
	return func(c *Coordinator) { c.observer = o }
}

// WithLogger sets the coordinator logger.
func WithLogger(l logging.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator wires two engines.  fallback may be nil, in which case
// primary failures are returned directly.
func NewCoordinator(primary, fallback Engine, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		primary:  primary,
		fallback: fallback,
		logger:   logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShouldFallback reports whether a primary failure warrants the fallback
// engine: undecodable input, malformed input, unsupported element or an empty
// molecule.  Unsupported formats and infrastructure errors do not.
func ShouldFallback(err error) bool {
	return errors.IsParseError(err)
}

// Parse resolves format and returns the canonical structure.
func (c *Coordinator) Parse(raw []byte, format, filename string) (*molecule.Structure, error) {
	res, err := c.ParseDetailed(raw, format, filename)
	if err != nil {
		return nil, err
	}
	return res.Structure, nil
}

// ParseDetailed is Parse, also reporting the engine that succeeded.
//
// An unknown format fails with UnsupportedFormat before any bytes are decoded.
// When the fallback runs, its error replaces the primary's.
func (c *Coordinator) ParseDetailed(raw []byte, format, filename string) (*Result, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	s, err := c.attempt(c.primary, raw, f, filename)
	if err == nil {
		return &Result{Structure: s, Format: f, Engine: c.primary.Name()}, nil
	}
	if c.fallback == nil || !ShouldFallback(err) {
		return nil, err
	}

	c.logger.Warn("primary engine failed, retrying with fallback",
		logging.String(logging.FieldEngine, c.primary.Name()),
		logging.String(logging.FieldFormat, f.String()),
		logging.String(logging.FieldErrorCode, errors.GetCode(err).String()),
		logging.Err(err))
	if c.observer != nil {
		c.observer.ObserveFallback(f)
	}

	s, err = c.attempt(c.fallback, raw, f, filename)
	if err != nil {
		return nil, err
	}
	return &Result{Structure: s, Format: f, Engine: c.fallback.Name(), FellBack: true}, nil
}

func (c *Coordinator) attempt(e Engine, raw []byte, f Format, filename string) (*molecule.Structure, error) {
	start := time.Now()
	s, err := e.Parse(raw, f, filename)
	if c.observer != nil {
		c.observer.ObserveAttempt(e.Name(), f, time.Since(start), err)
	}
	return s, err
}

// Engines returns the configured engine names, primary first.
func (c *Coordinator) Engines() []string {
	names := []string{c.primary.Name()}
	if c.fallback != nil {
		names = append(names, c.fallback.Name())
	}
	return names
}

//Personal.AI order the ending
