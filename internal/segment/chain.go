package segment

import (
	"context"
	"image"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"texswap/internal/logging"
	"texswap/internal/raster"
)

// Chain tries each strategy in order and returns the first success. Failures
// are logged and skipped; only the last strategy's error is returned.
type Chain struct {
	strategies []Segmenter
	logger     *logrus.Logger
}

func NewChain(logger *logrus.Logger, strategies ...Segmenter) *Chain {
	return &Chain{strategies: strategies, logger: logging.OrDiscard(logger)}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *Chain) Segment(ctx context.Context, img *image.RGBA) (*Result, error) {
	if err := raster.CheckImage(img); err != nil {
		return nil, err
	}
	if len(c.strategies) == 0 {
		return nil, errors.New("no segmentation strategies configured")
	}

	var lastErr error
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.Segment(ctx, img)
		if err == nil {
			return res, nil
		}
		c.logger.WithFields(logrus.Fields{
			"strategy": s.Name(),
			"error":    err,
		}).Warn("Segmentation strategy failed, falling back")
		lastErr = errors.Wrapf(err, "%s segmenter", s.Name())
	}
	return nil, lastErr
}
