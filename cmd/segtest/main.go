// Command segtest runs segmentation and perspective detection on a kitchen
// image, prints the results and optionally writes an overlay for inspection.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"

	"texswap/internal/app"
	"texswap/internal/codec"
	"texswap/internal/config"
	"texswap/internal/perspective"
	"texswap/internal/raster"
	"texswap/internal/relight"
	"texswap/pkg/geometry"
)

func main() {
	input := flag.String("i", "", "Path to kitchen image")
	cfgPath := flag.String("c", "", "Config file")
	output := flag.String("o", "", "Write mask overlay to this path")
	maxSize := flag.Int("max", 0, "Downscale so the longest side fits (0 = config value)")
	flag.Parse()

	if *input == "" {
		fmt.Println("Usage: segtest -i <kitchen> [-c <config>] [-o <overlay.png>] [-max <px>]")
		os.Exit(1)
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *maxSize > 0 {
		cfg.Options.MaxOutputSize = *maxSize
	}

	img, err := codec.Load(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *input, err)
		os.Exit(1)
	}
	img = codec.FitWithin(img, cfg.Options.MaxOutputSize)
	fmt.Printf("=== %s (%dx%d) ===\n", *input, img.Bounds().Dx(), img.Bounds().Dy())

	seg, closers, err := app.BuildSegmenter(cfg.Segmenter, cfg.Params.Segment, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build segmenter: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	// Step 1: Segmentation
	res, err := seg.Segment(context.Background(), img)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Segmentation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n=== Segmentation (%s) ===\n", res.Source)
	fmt.Printf("Confidence: %.3f\n", res.Confidence)
	fmt.Printf("Pixels: %d (%.1f%%)\n", res.Mask.Count(), 100*float64(res.Mask.Count())/float64(len(res.Mask.Pix)))
	b := res.BoundingBox
	fmt.Printf("Bounds: X=%d Y=%d W=%d H=%d\n", b.X, b.Y, b.Width, b.Height)

	// Step 2: Perspective
	persp, err := perspective.NewMapper(cfg.Params.Geometry, nil).Detect(img, res.Mask)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Perspective detection failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n=== Perspective ===\n")
	fmt.Printf("Corners: %d\n", len(persp.Corners))
	for i, p := range persp.Quad.Points() {
		fmt.Printf("  %d: (%.1f, %.1f)\n", i, p.X, p.Y)
	}
	fmt.Printf("Area: %.0f px, aspect %.2f, convex %v\n", persp.Quad.Area(), persp.Quad.AspectRatio(), persp.Quad.IsConvex())
	fmt.Printf("Confidence: %.3f\n", persp.Confidence)

	// Step 3: Lighting
	comp, err := relight.NewEngine(cfg.Params.Relight, nil, nil).ExtractLighting(img, res.Mask)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lighting extraction failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n=== Lighting ===\n")
	fmt.Printf("Confidence: %.3f\n", comp.Confidence)

	if *output == "" {
		return
	}
	overlay := drawOverlay(img, res.Mask, persp.Quad, persp.Corners)
	if err := codec.Save(*output, overlay, codec.DefaultQuality); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write overlay: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nOverlay written to %s\n", *output)
}

// drawOverlay tints the mask red, marks Harris corners green and the fitted
// quad's vertices blue.
func drawOverlay(img *image.RGBA, mask raster.Mask, quad geometry.Quad, corners []geometry.Point2D) *image.RGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	weights := mask.Weights()
	for i := range weights {
		weights[i] *= 0.5
	}
	out, err := raster.CompositeMasked(img, raster.Tint(w, h, color.RGBA{255, 0, 0, 255}), weights, raster.BlendNormal)
	if err != nil {
		return img
	}

	mark := func(p geometry.Point2D, r int, c color.RGBA) {
		cx, cy := int(p.X+0.5), int(p.Y+0.5)
		for y := cy - r; y <= cy+r; y++ {
			for x := cx - r; x <= cx+r; x++ {
				if (image.Point{X: x, Y: y}).In(out.Bounds()) {
					out.SetRGBA(x, y, c)
				}
			}
		}
	}
	for _, p := range corners {
		mark(p, 2, color.RGBA{0, 255, 0, 255})
	}
	for _, p := range quad.Points() {
		mark(p, 4, color.RGBA{0, 0, 255, 255})
	}
	return out
}
