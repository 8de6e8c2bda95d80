// Package perspective estimates the countertop plane from a segmentation
// mask and warps textures onto it.
package perspective

import (
	"image"
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"texswap/internal/config"
	"texswap/internal/logging"
	"texswap/internal/raster"
	"texswap/pkg/geometry"
)

// Result describes the detected plane. Corners holds the Harris corners the
// quad was fitted to, strongest first.
type Result struct {
	Quad       geometry.Quad
	Homography geometry.Homography
	Confidence float64
	Corners    []geometry.Point2D
}

// Corner is a Harris response at a boundary pixel.
type Corner struct {
	Point    geometry.Point2D
	Response float64
}

// Mapper runs the geometry stage.
type Mapper struct {
	params config.GeometryParams
	logger *logrus.Logger
}

func NewMapper(params config.GeometryParams, logger *logrus.Logger) *Mapper {
	return &Mapper{params: params, logger: logging.OrDiscard(logger)}
}

// Detect fits a quadrilateral to the mask outline and computes the homography
// from the unit square onto it. An empty mask yields a zero quad, the
// identity homography and zero confidence.
func (m *Mapper) Detect(img *image.RGBA, mask raster.Mask) (*Result, error) {
	if err := raster.CheckImage(img); err != nil {
		return nil, err
	}
	if !mask.Matches(img) {
		return nil, errors.Wrapf(raster.ErrDimensionMismatch, "mask %dx%d, image %v", mask.Width, mask.Height, img.Bounds().Size())
	}

	box, ok := mask.BoundingBox()
	if !ok {
		return &Result{Homography: geometry.IdentityHomography()}, nil
	}

	gray := raster.Gray(img)
	corners := m.Harris(gray, mask.EdgePixels())
	pts := make([]geometry.Point2D, len(corners))
	for i, c := range corners {
		pts[i] = c.Point
	}

	quad := m.FitQuad(pts, box)
	h := m.ComputeHomography(quad)
	conf := m.Confidence(quad, mask.Count())

	m.logger.WithFields(logrus.Fields{
		"stage":      "perspective",
		"corners":    len(pts),
		"quad":       quad,
		"confidence": conf,
	}).Debug("Perspective detected")

	return &Result{Quad: quad, Homography: h, Confidence: conf, Corners: pts}, nil
}

// Harris scores each candidate with the Harris response over a square window
// of central-difference luma gradients and returns the strongest MaxCorners
// with a response above HarrisThreshold. Gradients on the image border are
// zero and the window sums treat the outside as zero.
func (m *Mapper) Harris(gray raster.Plane, candidates []geometry.Point2D) []Corner {
	w, h := gray.Width, gray.Height
	win := m.params.HarrisWindow
	if w < 3 || h < 3 || len(candidates) == 0 {
		return nil
	}

	src := raster.PlaneMat(gray)
	defer src.Close()
	ix, iy := gocv.NewMat(), gocv.NewMat()
	defer ix.Close()
	defer iy.Close()
	// ksize 1 is the unsmoothed [-1 0 1] difference
	gocv.Sobel(src, &ix, gocv.MatTypeCV64F, 1, 0, 1, 1, 0, gocv.BorderReplicate)
	gocv.Sobel(src, &iy, gocv.MatTypeCV64F, 0, 1, 1, 1, 0, gocv.BorderReplicate)
	zeroBorder(raster.MatFloats(&ix), w, h)
	zeroBorder(raster.MatFloats(&iy), w, h)

	ones := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 0, 0, 0), 2*win+1, 2*win+1, gocv.MatTypeCV64F)
	defer ones.Close()
	windowSum := func(a, b gocv.Mat) gocv.Mat {
		prod := gocv.NewMat()
		defer prod.Close()
		gocv.Multiply(a, b, &prod)
		out := gocv.NewMat()
		gocv.Filter2D(prod, &out, gocv.MatTypeCV64F, ones, image.Pt(-1, -1), 0, gocv.BorderConstant)
		return out
	}
	sxxMat, syyMat, sxyMat := windowSum(ix, ix), windowSum(iy, iy), windowSum(ix, iy)
	defer sxxMat.Close()
	defer syyMat.Close()
	defer sxyMat.Close()
	sxx, syy, sxy := raster.MatFloats(&sxxMat), raster.MatFloats(&syyMat), raster.MatFloats(&sxyMat)

	var corners []Corner
	for _, p := range candidates {
		x, y := int(p.X), int(p.Y)
		if x < win || y < win || x >= w-win || y >= h-win {
			continue
		}
		i := y*w + x
		det := sxx[i]*syy[i] - sxy[i]*sxy[i]
		trace := sxx[i] + syy[i]
		r := det - m.params.HarrisK*trace*trace
		if r > m.params.HarrisThreshold {
			corners = append(corners, Corner{Point: p, Response: r})
		}
	}

	sort.SliceStable(corners, func(i, j int) bool { return corners[i].Response > corners[j].Response })
	if len(corners) > m.params.MaxCorners {
		corners = corners[:m.params.MaxCorners]
	}
	return corners
}

func zeroBorder(pix []float64, w, h int) {
	for x := 0; x < w; x++ {
		pix[x], pix[(h-1)*w+x] = 0, 0
	}
	for y := 0; y < h; y++ {
		pix[y*w], pix[y*w+w-1] = 0, 0
	}
}
// FitQuad reduces corner candidates to a quadrilateral. Fewer than four
// candidates fall back to the mask bounding box. Otherwise the convex hull is
// reduced to the four hull points whose quad best fits the hull, ordered
// TL, TR, BR, BL by angle. A hull of fewer than four points uses the extreme
// candidates.
func (m *Mapper) FitQuad(corners []geometry.Point2D, box geometry.RectInt) geometry.Quad {
	if len(corners) < 4 {
		return box.Corners()
	}

	hull := geometry.ConvexHull(corners)
	if len(hull) >= 4 {
		best := hull[:4]
		if len(hull) > 4 {
			best = bestQuad(hull)
		}
		sorted := geometry.SortByAngle(best)
		return geometry.QuadFromPoints([4]geometry.Point2D{sorted[0], sorted[1], sorted[2], sorted[3]})
	}

	left, right, top, bottom := corners[0], corners[0], corners[0], corners[0]
	for _, p := range corners[1:] {
		if p.X < left.X {
			left = p
		}
		if p.X > right.X {
			right = p
		}
		if p.Y < top.Y {
			top = p
		}
		if p.Y > bottom.Y {
			bottom = p
		}
	}
	return geometry.Quad{TopLeft: top, TopRight: right, BottomRight: bottom, BottomLeft: left}
}

// bestQuad searches every 4-subset of hull (in hull order) for the one
// minimising the summed squared distance from hull points to the quad edges.
func bestQuad(hull []geometry.Point2D) []geometry.Point2D {
	n := len(hull)
	var best []geometry.Point2D
	minErr := math.Inf(1)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				for l := k + 1; l < n; l++ {
					q := [4]geometry.Point2D{hull[i], hull[j], hull[k], hull[l]}
					if e := quadError(q, hull); e < minErr {
						minErr = e
						best = q[:]
					}
				}
			}
		}
	}
	return best
}

func quadError(q [4]geometry.Point2D, pts []geometry.Point2D) float64 {
	total := 0.0
	for _, p := range pts {
		d := math.Inf(1)
		for i := 0; i < 4; i++ {
			d = math.Min(d, geometry.PointToSegmentDistance(p, q[i], q[(i+1)%4]))
		}
		total += d * d
	}
	return total
}

// Confidence scores how well the quad covers the mask area and how close its
// aspect ratio is to PreferredAspect, clamped to [0,1].
func (m *Mapper) Confidence(quad geometry.Quad, maskArea int) float64 {
	q, a := quad.Area(), float64(maskArea)
	areaRatio := 0.0
	if q > 0 && a > 0 {
		areaRatio = math.Min(q/a, a/q)
	}
	aspectConf := 1 - math.Abs(quad.AspectRatio()-m.params.PreferredAspect)/2
	c := areaRatio*m.params.AreaWeight + aspectConf*m.params.AspectWeight
	return math.Max(0, math.Min(1, c))
}
