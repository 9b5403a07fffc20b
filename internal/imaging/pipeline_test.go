package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradientImage builds a horizontal gray gradient for pipeline tests.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / (w - 1))
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func TestProcess_NoOptionsReturnsInput(t *testing.T) {
	img := gradientImage(10, 10)
	out := Process(img, Options{})
	assert.Equal(t, image.Image(img), out)
}

func TestProcess_ScaleResizes(t *testing.T) {
	img := gradientImage(40, 20)
	out := Process(img, Options{Scale: 2.0})

	b := out.Bounds()
	assert.Equal(t, 80, b.Dx())
	assert.Equal(t, 40, b.Dy())
}

func TestProcess_ScaleAtOrBelowOneIsNoop(t *testing.T) {
	img := gradientImage(40, 20)

	for _, scale := range []float64{0, 0.5, 1.0} {
		out := Process(img, Options{Scale: scale})
		assert.Equal(t, 40, out.Bounds().Dx(), "scale %v", scale)
		assert.Equal(t, 20, out.Bounds().Dy(), "scale %v", scale)
	}
}

func TestProcess_BinarizeYieldsPureBlackAndWhite(t *testing.T) {
	img := gradientImage(32, 8)
	out := Process(img, Options{Preprocess: true, Threshold: 160})

	gray, ok := out.(*image.Gray)
	require.True(t, ok, "binarized output should be grayscale")

	sawBlack, sawWhite := false, false
	for _, v := range gray.Pix {
		switch v {
		case 0:
			sawBlack = true
		case 255:
			sawWhite = true
		default:
			t.Fatalf("pixel value %d is neither 0 nor 255", v)
		}
	}
	assert.True(t, sawBlack, "gradient should produce black pixels")
	assert.True(t, sawWhite, "gradient should produce white pixels")
}

func TestProcess_InvertFlipsPolarity(t *testing.T) {
	// Dark background with a bright stripe: light-on-dark chat theme.
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			v := uint8(30)
			if y >= 4 && y < 6 {
				v = 220
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}

	plain := Process(img, Options{Preprocess: true, Threshold: 128}).(*image.Gray)
	inverted := Process(img, Options{Preprocess: true, Invert: true, Threshold: 128}).(*image.Gray)

	// The bright stripe becomes white normally and black when inverted.
	assert.Equal(t, uint8(255), plain.GrayAt(5, 5).Y)
	assert.Equal(t, uint8(0), inverted.GrayAt(5, 5).Y)
	assert.Equal(t, uint8(0), plain.GrayAt(5, 0).Y)
	assert.Equal(t, uint8(255), inverted.GrayAt(5, 0).Y)
}

func TestProcess_Deterministic(t *testing.T) {
	img := gradientImage(24, 24)
	opts := Options{Scale: 1.5, MedianRadius: 3, Sharpen: true, Preprocess: true, Threshold: 160}

	first := Process(img, opts)
	second := Process(img, opts)

	a, ok := first.(*image.Gray)
	require.True(t, ok)
	b, ok := second.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestAutocontrast_StretchesRange(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 3, 1))
	gray.Pix = []uint8{100, 150, 200}

	autocontrast(gray)

	assert.Equal(t, uint8(0), gray.Pix[0])
	assert.Equal(t, uint8(127), gray.Pix[1])
	assert.Equal(t, uint8(255), gray.Pix[2])
}

func TestAutocontrast_FlatImageUntouched(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 1))
	gray.Pix = []uint8{90, 90, 90, 90}

	autocontrast(gray)

	assert.Equal(t, []uint8{90, 90, 90, 90}, gray.Pix)
}

func TestMedian_RemovesSaltNoise(t *testing.T) {
	// Uniform mid-gray with a single hot pixel.
	img := image.NewRGBA(image.Rect(0, 0, 9, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 9; x++ {
			img.Set(x, y, color.RGBA{128, 128, 128, 255})
		}
	}
	img.Set(4, 4, color.RGBA{255, 255, 255, 255})

	out := median(img, 3)

	r, _, _, _ := out.At(4, 4).RGBA()
	assert.Equal(t, uint32(128), r>>8, "hot pixel should be smoothed away")
}

func TestMedianOf(t *testing.T) {
	assert.Equal(t, uint8(5), medianOf([]uint8{9, 1, 5}))
	assert.Equal(t, uint8(7), medianOf([]uint8{7}))
	assert.Equal(t, uint8(3), medianOf([]uint8{4, 1, 3, 2, 200}))
}
