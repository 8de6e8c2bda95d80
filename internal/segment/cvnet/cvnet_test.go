package cvnet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"texswap/internal/config"
)

func TestArgmaxMask(t *testing.T) {
	s := &Segmenter{cfg: config.ModelConfig{ClassIDs: []int{2}, Threshold: 0.5}}
	// 3 classes over a 2x1 output; pixel 0 wins class 2 clearly, pixel 1 wins class 0
	scores := []float32{
		0, 5, // class 0
		0, 0, // class 1
		6, 0, // class 2
	}
	mask, conf := s.argmaxMask(scores, 3, 1, 2)
	assert.Equal(t, []uint8{255, 0}, mask)
	assert.Greater(t, conf, 0.99)
	assert.LessOrEqual(t, conf, 1.0)
}

func TestArgmaxMaskThreshold(t *testing.T) {
	s := &Segmenter{cfg: config.ModelConfig{ClassIDs: []int{1}, Threshold: 0.9}}
	// class 1 wins but only narrowly
	mask, conf := s.argmaxMask([]float32{1.0, 1.1}, 2, 1, 1)
	assert.Equal(t, []uint8{0}, mask)
	assert.Zero(t, conf)
}

func TestNewRequiresModel(t *testing.T) {
	_, err := New(config.ModelConfig{})
	assert.Error(t, err)
	_, err = New(config.ModelConfig{Path: "model.onnx"})
	assert.Error(t, err)
}
