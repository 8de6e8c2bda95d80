package segment

import (
	"context"
	"image"

	"texswap/internal/config"
	"texswap/internal/raster"
)

// Heuristic finds flat regions enclosed by strong edges in the middle band
// of the image, where countertops usually sit.
type Heuristic struct {
	params config.SegmentParams
}

func NewHeuristic(params config.SegmentParams) *Heuristic {
	return &Heuristic{params: params}
}

func (h *Heuristic) Name() string { return "heuristic" }

// Segment seeds a flood fill next to every strong edge pixel in the search
// band. Each fill spreads over 4-connected low-gradient pixels and the region
// is kept only when its share of the image lies within the configured range,
// which rejects specks and the open background.
func (h *Heuristic) Segment(ctx context.Context, img *image.RGBA) (*Result, error) {
	if err := raster.CheckImage(img); err != nil {
		return nil, err
	}

	edges := raster.Sobel(raster.Gray(img))
	w, ht := edges.Width, edges.Height
	mask := raster.NewMask(w, ht)
	visited := make([]bool, w*ht)

	thr := h.params.EdgeThreshold
	total := float64(w * ht)
	y0 := int(float64(ht) * h.params.SearchBandTop)
	y1 := int(float64(ht) * h.params.SearchBandBottom)

	var stack, region []int
	fill := func(seed int) {
		region = region[:0]
		stack = append(stack[:0], seed)
		visited[seed] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			region = append(region, i)

			x, y := i%w, i/w
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if n[0] < 0 || n[1] < 0 || n[0] >= w || n[1] >= ht {
					continue
				}
				j := n[1]*w + n[0]
				if !visited[j] && edges.Pix[j] < thr {
					visited[j] = true
					stack = append(stack, j)
				}
			}
		}

		frac := float64(len(region)) / total
		if frac < h.params.MinRegionFraction || frac > h.params.MaxRegionFraction {
			return
		}
		for _, i := range region {
			mask.Pix[i] = 255
		}
	}

	for y := y0; y < y1; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < w; x++ {
			if edges.Pix[y*w+x] <= thr {
				continue
			}
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if n[0] < 0 || n[1] < 0 || n[0] >= w || n[1] >= ht {
					continue
				}
				j := n[1]*w + n[0]
				if !visited[j] && edges.Pix[j] < thr {
					fill(j)
				}
			}
		}
	}

	confidence := 0.0
	if !mask.Empty() {
		confidence = h.params.FallbackConfidence
	}
	return NewResult(mask, confidence, h.Name()), nil
}
