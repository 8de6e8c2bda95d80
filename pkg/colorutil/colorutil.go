// Package colorutil provides shared color utilities for the texture pipeline.
package colorutil

import (
	"github.com/lucasb-eyer/go-colorful"
)

// Luma returns the BT.601 luma of an 8-bit RGB triple.
func Luma(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// Quantize snaps v down to a multiple of step.
func Quantize(v uint8, step int) uint8 {
	if step <= 1 {
		return v
	}
	return uint8(int(v) / step * step)
}

// Pack returns r, g, b packed as 0xRRGGBB.
func Pack(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// Unpack splits a 0xRRGGBB value.
func Unpack(c uint32) (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Hex renders a packed color as "#rrggbb".
func Hex(c uint32) string {
	r, g, b := Unpack(c)
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}.Hex()
}

// Clamp8 rounds v and clamps it into [0,255].
func Clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
