// Package imaging prepares captured frames for text recognition.
package imaging

import (
	"image"
	"image/color"
	"sort"

	"github.com/nfnt/resize"
)

// Options parameterize the pipeline. Zero values disable each step.
type Options struct {
	Scale        float64 // upscale factor, applied when > 1.0
	MedianRadius int     // median filter window, applied when > 1
	Sharpen      bool
	Preprocess   bool // binarize for recognition
	Invert       bool // invert before thresholding (light text on dark chat themes)
	Threshold    int  // binarization cutoff, 0..255
}

// Process applies the configured transforms in a fixed order: upscale,
// median denoise, sharpen, then binarization. Scaling and filtering run on
// the color image before thresholding so the cutoff sees a cleaner signal.
// Deterministic for identical input and options.
func Process(img image.Image, opts Options) image.Image {
	out := img

	if opts.Scale > 1.0 {
		b := out.Bounds()
		w := uint(float64(b.Dx()) * opts.Scale)
		h := uint(float64(b.Dy()) * opts.Scale)
		out = resize.Resize(w, h, out, resize.Lanczos3)
	}

	if opts.MedianRadius > 1 {
		out = median(toRGBA(out), opts.MedianRadius)
	}

	if opts.Sharpen {
		out = sharpen(toRGBA(out))
	}

	if opts.Preprocess {
		out = binarize(out, opts.Invert, opts.Threshold)
	}

	return out
}

// binarize converts to grayscale, optionally inverts, stretches contrast to
// the full range, and thresholds every pixel to pure black or white.
func binarize(img image.Image, invert bool, threshold int) *image.Gray {
	gray := toGray(img)
	if invert {
		for i, v := range gray.Pix {
			gray.Pix[i] = 255 - v
		}
	}
	autocontrast(gray)

	cutoff := uint8(clamp8(threshold))
	for i, v := range gray.Pix {
		if v > cutoff {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
	return gray
}

// autocontrast linearly stretches the gray histogram so the darkest pixel
// maps to 0 and the brightest to 255. A flat image is left untouched.
func autocontrast(gray *image.Gray) {
	if len(gray.Pix) == 0 {
		return
	}
	lo, hi := gray.Pix[0], gray.Pix[0]
	for _, v := range gray.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return
	}
	span := int(hi) - int(lo)
	for i, v := range gray.Pix {
		gray.Pix[i] = uint8((int(v) - int(lo)) * 255 / span)
	}
}

// median applies a per-channel median filter with the given window size.
func median(img *image.RGBA, window int) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	half := window / 2

	var rs, gs, bs [289]uint8 // up to window size 17
	if window > 17 {
		window = 17
		half = 8
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			n := 0
			for dy := -half; dy <= half; dy++ {
				for dx := -half; dx <= half; dx++ {
					sx, sy := clampInt(x+dx, b.Min.X, b.Max.X-1), clampInt(y+dy, b.Min.Y, b.Max.Y-1)
					i := img.PixOffset(sx, sy)
					rs[n], gs[n], bs[n] = img.Pix[i], img.Pix[i+1], img.Pix[i+2]
					n++
				}
			}
			o := out.PixOffset(x, y)
			out.Pix[o] = medianOf(rs[:n])
			out.Pix[o+1] = medianOf(gs[:n])
			out.Pix[o+2] = medianOf(bs[:n])
			out.Pix[o+3] = img.Pix[img.PixOffset(x, y)+3]
		}
	}
	return out
}

func medianOf(s []uint8) uint8 {
	tmp := make([]uint8, len(s))
	copy(tmp, s)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })
	return tmp[len(tmp)/2]
}

// sharpen applies a 3x3 unsharp kernel.
func sharpen(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)

	kernel := [3][3]int{
		{0, -1, 0},
		{-1, 5, -1},
		{0, -1, 0},
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var sr, sg, sb int
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sx, sy := clampInt(x+kx, b.Min.X, b.Max.X-1), clampInt(y+ky, b.Min.Y, b.Max.Y-1)
					i := img.PixOffset(sx, sy)
					k := kernel[ky+1][kx+1]
					sr += int(img.Pix[i]) * k
					sg += int(img.Pix[i+1]) * k
					sb += int(img.Pix[i+2]) * k
				}
			}
			o := out.PixOffset(x, y)
			out.Pix[o] = uint8(clamp8(sr))
			out.Pix[o+1] = uint8(clamp8(sg))
			out.Pix[o+2] = uint8(clamp8(sb))
			out.Pix[o+3] = img.Pix[img.PixOffset(x, y)+3]
		}
	}
	return out
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		cp := image.NewGray(gray.Bounds())
		copy(cp.Pix, gray.Pix)
		return cp
	}
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return out
}

func clamp8(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
