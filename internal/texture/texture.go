// Package texture prepares a material sample for mapping: it removes the
// sample's own lighting, makes it tile seamlessly and estimates its feature
// scale and palette.
package texture

import (
	"image"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"texswap/internal/config"
	"texswap/internal/logging"
	"texswap/internal/raster"
	"texswap/pkg/colorutil"
	"texswap/pkg/geometry"
)

// Processed is a material sample ready for warping.
type Processed struct {
	Albedo   *image.RGBA
	Tileable *image.RGBA
	Scale    float64
	Metadata Metadata
}

type Metadata struct {
	OriginalSize   geometry.Size
	TileSize       geometry.Size
	DominantColors []uint32 // packed 0xRRGGBB, most frequent first
}

// Processor runs the texture stage. It holds no per-call state.
type Processor struct {
	params config.TextureParams
	logger *logrus.Logger
}

func NewProcessor(params config.TextureParams, logger *logrus.Logger) *Processor {
	return &Processor{params: params, logger: logging.OrDiscard(logger)}
}

// Process normalises, tiles and analyses sample.
func (p *Processor) Process(sample *image.RGBA) (*Processed, error) {
	if err := raster.CheckImage(sample); err != nil {
		return nil, err
	}
	src := raster.ToRGBA(sample)
	orig := geometry.Size{Width: src.Bounds().Dx(), Height: src.Bounds().Dy()}

	work := p.capSize(src)
	albedo := p.Normalize(work)
	tile := p.MakeSeamlessTileable(albedo)
	scale := p.DetectScale(src)
	colors := p.DominantColors(src)

	p.logger.WithFields(logrus.Fields{
		"stage":  "texture",
		"size":   orig,
		"tile":   tile.Bounds().Dx(),
		"scale":  scale,
		"colors": HexColors(colors),
	}).Debug("Texture processed")

	return &Processed{
		Albedo:   albedo,
		Tileable: tile,
		Scale:    scale,
		Metadata: Metadata{
			OriginalSize:   orig,
			TileSize:       geometry.Size{Width: tile.Bounds().Dx(), Height: tile.Bounds().Dy()},
			DominantColors: colors,
		},
	}, nil
}

// capSize downscales so the shorter side is at most MaxTileSize.
func (p *Processor) capSize(img *image.RGBA) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	short := min(w, h)
	if p.params.MaxTileSize <= 0 || short <= p.params.MaxTileSize {
		return img
	}
	f := float64(p.params.MaxTileSize) / float64(short)
	nw := max(1, int(math.Round(float64(w)*f)))
	nh := max(1, int(math.Round(float64(h)*f)))
	return raster.ResizeHigh(img, nw, nh)
}

// Normalize removes low-frequency illumination with single-scale Retinex on
// each channel. The result is rescaled by the channel mean so a flat sample
// keeps its colour. Alpha is copied.
func (p *Processor) Normalize(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	sigma := float64(min(w, h)) / p.params.RetinexSigmaDivisor
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	for c, ch := range raster.Channels(img) {
		gain := stat.Mean(ch.Pix, nil)
		logs := raster.NewPlane(w, h)
		for i, v := range ch.Pix {
			logs.Pix[i] = math.Log(math.Max(1, v))
		}
		illum := raster.Blur(logs, nil, sigma)
		for i := range logs.Pix {
			out.Pix[i*4+c] = colorutil.Clamp8(math.Exp(logs.Pix[i]-illum.Pix[i]) * gain)
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[out.PixOffset(x, y)+3] = img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)+3]
		}
	}
	return out
}

// TileSize picks the tile edge for a sample: MinTileSize doubled while the
// doubled size still fits in the shorter side, up to MaxTileSize.
func (p *Processor) TileSize(w, h int) int {
	t := p.params.MinTileSize
	for t*2 <= min(w, h) && t < p.params.MaxTileSize {
		t *= 2
	}
	return t
}

// MakeSeamlessTileable resizes to a square tile and cross-fades opposite
// edges so the first and last columns (and rows) are identical. Within the
// blend band the fade runs from the pair mean at the edge to the original
// pixel at the band's inner side.
func (p *Processor) MakeSeamlessTileable(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	t := p.TileSize(b.Dx(), b.Dy())
	out := raster.Resize(img, t, t)

	band := int(float64(t) * p.params.TileBlendFraction)
	if band < 1 {
		return out
	}

	for i := 0; i < band; i++ {
		f := float64(i) / float64(band)
		for y := 0; y < t; y++ {
			crossFade(out.Pix, out.PixOffset(i, y), out.PixOffset(t-1-i, y), f)
		}
	}
	for i := 0; i < band; i++ {
		f := float64(i) / float64(band)
		for x := 0; x < t; x++ {
			crossFade(out.Pix, out.PixOffset(x, i), out.PixOffset(x, t-1-i), f)
		}
	}
	return out
}

// crossFade pulls the pixels at offsets l and r towards their mean; f=0 makes
// them equal, f=1 leaves them untouched.
func crossFade(pix []uint8, l, r int, f float64) {
	for c := 0; c < 4; c++ {
		a, b := float64(pix[l+c]), float64(pix[r+c])
		mean := (a + b) / 2
		pix[l+c] = colorutil.Clamp8(mean + (a-mean)*f)
		pix[r+c] = colorutil.Clamp8(mean + (b-mean)*f)
	}
}

// DetectScale estimates the feature size of the sample from the mean distance
// between its first strong edge pixels, relative to ScaleDivisor.
func (p *Processor) DetectScale(img *image.RGBA) float64 {
	edges := raster.Sobel(raster.Gray(img))
	var pts []geometry.Point2D
	for i, v := range edges.Pix {
		if v <= p.params.EdgeThreshold {
			continue
		}
		pts = append(pts, geometry.Point2D{X: float64(i % edges.Width), Y: float64(i / edges.Width)})
		if len(pts) >= p.params.ScaleSampleLimit {
			break
		}
	}

	dist := p.params.DefaultFeatureDistance
	if len(pts) >= 2 {
		sum, n := 0.0, 0
		for i := 0; i < len(pts); i++ {
			for j := i + 1; j < len(pts); j++ {
				sum += pts[i].Distance(pts[j])
				n++
			}
		}
		dist = sum / float64(n)
	}
	return math.Min(p.params.ScaleMax, math.Max(p.params.ScaleMin, dist/p.params.ScaleDivisor))
}

// DominantColors returns up to DominantColorCount quantised colours ordered by
// frequency. Large images are subsampled to roughly 10000 pixels.
func (p *Processor) DominantColors(img *image.RGBA) []uint32 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	step := max(1, n/10000)
	q := p.params.ColorQuantStep

	counts := make(map[uint32]int)
	for i := 0; i < n; i += step {
		o := img.PixOffset(b.Min.X+i%b.Dx(), b.Min.Y+i/b.Dx())
		c := colorutil.Pack(
			colorutil.Quantize(img.Pix[o], q),
			colorutil.Quantize(img.Pix[o+1], q),
			colorutil.Quantize(img.Pix[o+2], q),
		)
		counts[c]++
	}

	colors := make([]uint32, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		if counts[colors[i]] != counts[colors[j]] {
			return counts[colors[i]] > counts[colors[j]]
		}
		return colors[i] < colors[j]
	})
	if len(colors) > p.params.DominantColorCount {
		colors = colors[:p.params.DominantColorCount]
	}
	return colors
}

// HexColors renders packed colours as "#rrggbb".
func HexColors(colors []uint32) []string {
	out := make([]string, len(colors))
	for i, c := range colors {
		out[i] = colorutil.Hex(c)
	}
	return out
}
