package raster

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

// ExactBlurRadius is the largest kernel radius blurred with a true Gaussian.
// Wider kernels use three box filter passes.
const ExactBlurRadius = 32

// Gray returns the BT.601 luma of img as a plane, rounded to whole levels.
func Gray(img *image.RGBA) Plane {
	src, err := RGBAMat(img)
	if err != nil {
		return NewPlane(0, 0)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorRGBAToGray)
	return MatPlane(gray)
}

// Channels splits img into float R, G and B planes.
func Channels(img *image.RGBA) [3]Plane {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := [3]Plane{NewPlane(w, h), NewPlane(w, h), NewPlane(w, h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			i := y*w + x
			out[0].Pix[i] = float64(img.Pix[o])
			out[1].Pix[i] = float64(img.Pix[o+1])
			out[2].Pix[i] = float64(img.Pix[o+2])
		}
	}
	return out
}

// Sobel returns the 3x3 Sobel gradient magnitude of a luma plane, truncated
// to [0,255]. The one-pixel border is zero.
func Sobel(gray Plane) Mask {
	w, h := gray.Width, gray.Height
	out := NewMask(w, h)
	if w < 3 || h < 3 {
		return out
	}

	src := PlaneMat(gray)
	defer src.Close()
	gx, gy, mag := gocv.NewMat(), gocv.NewMat(), gocv.NewMat()
	defer gx.Close()
	defer gy.Close()
	defer mag.Close()
	gocv.Sobel(src, &gx, gocv.MatTypeCV64F, 1, 0, 3, 1, 0, gocv.BorderReplicate)
	gocv.Sobel(src, &gy, gocv.MatTypeCV64F, 0, 1, 3, 1, 0, gocv.BorderReplicate)
	gocv.Magnitude(gx, gy, &mag)

	m := MatFloats(&mag)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			out.Pix[y*w+x] = uint8(math.Min(m[y*w+x], 255))
		}
	}
	return out
}

// Blur applies a Gaussian blur of standard deviation sigma with clamp-to-edge
// borders. When weights is non-nil the result is the normalised convolution
// blur(p*w)/blur(w), so pixels with zero weight do not bleed into the output;
// where the blurred weight vanishes the input value is kept.
func Blur(p Plane, weights []float64, sigma float64) Plane {
	if sigma <= 0 || p.Width == 0 || p.Height == 0 {
		return Plane{Width: p.Width, Height: p.Height, Pix: append([]float64(nil), p.Pix...)}
	}

	src := PlaneMat(p)
	defer src.Close()
	if weights == nil {
		num := smooth(src, sigma)
		defer num.Close()
		return MatPlane(num)
	}

	w := PlaneMat(Plane{Width: p.Width, Height: p.Height, Pix: weights})
	defer w.Close()
	weighted := gocv.NewMat()
	defer weighted.Close()
	gocv.Multiply(src, w, &weighted)

	num, den := smooth(weighted, sigma), smooth(w, sigma)
	defer num.Close()
	defer den.Close()
	ratio := gocv.NewMat()
	defer ratio.Close()
	gocv.Divide(num, den, &ratio)

	out := MatPlane(ratio)
	d := MatFloats(&den)
	for i := range out.Pix {
		if d[i] <= 1e-6 {
			out.Pix[i] = p.Pix[i]
		}
	}
	return out
}

// smooth blurs a float Mat into a new Mat owned by the caller. The box path
// reflects at the border instead of clamping.
func smooth(src gocv.Mat, sigma float64) gocv.Mat {
	dst := gocv.NewMat()
	radius := int(math.Ceil(3 * sigma))
	if radius <= ExactBlurRadius {
		k := image.Pt(2*radius+1, 2*radius+1)
		gocv.GaussianBlur(src, &dst, k, sigma, sigma, gocv.BorderReplicate)
		return dst
	}
	src.CopyTo(&dst)
	for _, size := range boxSizes(sigma, 3) {
		gocv.BoxFilter(dst, &dst, -1, image.Pt(size, size))
	}
	return dst
}

// boxSizes returns n odd box widths whose successive application approximates
// a Gaussian of the given sigma.
func boxSizes(sigma float64, n int) []int {
	wIdeal := math.Sqrt(12*sigma*sigma/float64(n) + 1)
	wl := int(math.Floor(wIdeal))
	if wl%2 == 0 {
		wl--
	}
	wu := wl + 2
	mIdeal := (12*sigma*sigma - float64(n*wl*wl) - 4*float64(n*wl) - 3*float64(n)) / (-4*float64(wl) - 4)
	m := int(math.Round(mIdeal))

	sizes := make([]int, n)
	for i := range sizes {
		if i < m {
			sizes[i] = wl
		} else {
			sizes[i] = wu
		}
	}
	return sizes
}
