// Package app assembles the logger, segmenters and pipeline engine from a
// Config and runs replacements against files on disk.
package app

import (
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"texswap/internal/config"
	"texswap/internal/logging"
	"texswap/internal/pipeline"
	"texswap/internal/segment"
	"texswap/internal/segment/cvnet"
)

// Segmentation strategy names accepted in SegmenterConfig.Strategies.
const (
	StrategyRemote    = "remote"
	StrategyModel     = "cvnet"
	StrategyHeuristic = "heuristic"
)

// App holds everything a command needs to run replacements.
type App struct {
	Config *config.Config
	Logger *logrus.Logger
	Engine *pipeline.Engine

	closers []io.Closer

	mu        sync.RWMutex
	listeners map[EventType][]EventListener
}

// EventType identifies progress events emitted while processing files.
type EventType int

const (
	EventImageLoaded EventType = iota
	EventImageReplaced
	EventImageFailed
	EventOutputWritten
	EventBatchComplete
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// New builds an App from cfg. Close releases any loaded models.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := logging.New(cfg.Log)

	seg, closers, err := BuildSegmenter(cfg.Segmenter, cfg.Params.Segment, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Engine:    pipeline.New(cfg.Params, seg, logger),
		closers:   closers,
		listeners: make(map[EventType][]EventListener),
	}, nil
}

// BuildSegmenter creates the configured strategies in order and chains them.
// A heuristic segmenter is appended when the list does not end with one, so
// the chain always has a strategy that cannot fail on a valid image.
func BuildSegmenter(cfg config.SegmenterConfig, params config.SegmentParams, logger *logrus.Logger) (segment.Segmenter, []io.Closer, error) {
	var (
		strategies []segment.Segmenter
		closers    []io.Closer
	)
	fail := func(err error) (segment.Segmenter, []io.Closer, error) {
		for _, c := range closers {
			c.Close()
		}
		return nil, nil, err
	}

	for _, name := range cfg.Strategies {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case StrategyRemote:
			if cfg.Remote.Endpoint == "" {
				return fail(errors.New("remote segmenter needs segmenter.remote.endpoint"))
			}
			strategies = append(strategies, segment.NewRemote(cfg.Remote))
		case StrategyModel:
			net, err := cvnet.New(cfg.Model)
			if err != nil {
				return fail(errors.Wrap(err, "failed to load segmentation model"))
			}
			strategies = append(strategies, net)
			closers = append(closers, net)
		case StrategyHeuristic:
			strategies = append(strategies, segment.NewHeuristic(params))
		default:
			return fail(errors.Errorf("unknown segmentation strategy %q", name))
		}
	}

	if n := len(strategies); n == 0 || strategies[n-1].Name() != StrategyHeuristic {
		strategies = append(strategies, segment.NewHeuristic(params))
	}
	if len(strategies) == 1 {
		return strategies[0], closers, nil
	}
	return segment.NewChain(logger, strategies...), closers, nil
}

// Close releases resources held by the segmenters.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// On registers an event listener for the specified event type.
func (a *App) On(event EventType, listener EventListener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners[event] = append(a.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (a *App) Emit(event EventType, data interface{}) {
	a.mu.RLock()
	listeners := a.listeners[event]
	a.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}
