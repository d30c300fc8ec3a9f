package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/errdocs/retrieval-engine/internal/corpus"
	apperrors "github.com/errdocs/retrieval-engine/pkg/errors"
	"github.com/errdocs/retrieval-engine/pkg/resilience"
)

// State is the controller's build state machine: Idle → Building → Swapping
// → Idle.
type State int32

const (
	StateIdle State = iota
	StateBuilding
	StateSwapping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateSwapping:
		return "swapping"
	default:
		return "unknown"
	}
}

// Controller owns the current-generation pointer. Rebuilds construct a fresh
// Generation off to the side and swap it in atomically; queries against the
// old generation complete untouched, and a failed build leaves the previous
// generation serving.
type Controller struct {
	source      corpus.Source
	params      BuildParams
	readTimeout time.Duration
	logger      *slog.Logger

	current atomic.Pointer[Generation]
	lastID  atomic.Uint64
	state   atomic.Int32
	group   singleflight.Group
}

// NewController creates a Controller over the given corpus source. No
// generation exists until the first successful Rebuild.
func NewController(source corpus.Source, params BuildParams, readTimeout time.Duration) *Controller {
	return &Controller{
		source:      source,
		params:      params,
		readTimeout: readTimeout,
		logger:      slog.Default().With("component", "index-controller"),
	}
}

// Current returns the generation serving queries, or nil before the first
// successful build.
func (c *Controller) Current() *Generation {
	return c.current.Load()
}

// State returns the controller's build state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Rebuild builds a new generation from a full corpus snapshot and swaps it
// in. Concurrent calls collapse into a single build; every caller gets that
// build's result.
func (c *Controller) Rebuild(ctx context.Context) (*Generation, error) {
	v, err, shared := c.group.Do("rebuild", func() (any, error) {
		return c.rebuild(ctx)
	})
	if err != nil {
		return nil, err
	}
	gen := v.(*Generation)
	if shared {
		c.logger.Debug("rebuild coalesced with in-flight build", "generation", gen.ID)
	}
	return gen, nil
}

func (c *Controller) rebuild(ctx context.Context) (*Generation, error) {
	c.state.Store(int32(StateBuilding))
	defer c.state.Store(int32(StateIdle))

	start := time.Now()
	var docs []corpus.Document
	err := resilience.WithTimeout(ctx, c.readTimeout, "corpus-read", func(ctx context.Context) error {
		var readErr error
		docs, readErr = c.source.Documents(ctx)
		return readErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading corpus snapshot: %v", apperrors.ErrRebuildFailed, err)
	}

	gen, err := BuildGeneration(ctx, c.lastID.Add(1), docs, c.params)
	if err != nil {
		c.logger.Error("generation build failed, previous generation keeps serving",
			"error", err,
			"corpus_size", len(docs),
		)
		return nil, err
	}

	c.state.Store(int32(StateSwapping))
	c.current.Store(gen)

	c.logger.Info("generation swapped in",
		"generation", gen.ID,
		"documents", len(gen.Docs),
		"vocabulary", gen.Vocab.Size(),
		"avg_doc_len", gen.BM25.AvgDocLen(),
		"build_duration", time.Since(start),
	)
	return gen, nil
}
