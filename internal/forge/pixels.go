package forge

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const glyphHeight = 13 // basicfont.Face7x13 line height

// newPixelData synthesises one native frame: a radial gradient with layered
// noise, optionally with text burned into the pixels.
func newPixelData(p modalityParams, rows, cols int, seed uint64, text string) dicom.PixelDataInfo {
	rng := rand.New(rand.NewPCG(seed, seed))
	maxVal := float64(uint64(1)<<p.bitsStored - 1)

	centerX := float64(cols) / 2
	centerY := float64(rows) / 2
	maxDist := math.Sqrt(centerX*centerX + centerY*centerY)

	intensities := make([]float64, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx+dy*dy) / maxDist

			v := float64(p.baseValue) + (1-dist)*float64(p.valueRange)*0.3
			v += (rng.Float64() - 0.5) * float64(p.valueRange) * 0.3
			v += (rng.Float64() - 0.5) * float64(p.valueRange) * 0.15
			intensities[y*cols+x] = math.Max(0, math.Min(maxVal, v))
		}
	}

	if text != "" {
		burnTextInto(intensities, rows, cols, maxVal, text)
	}

	if p.bitsAllocated == 8 {
		native := frame.NewNativeFrame[uint8](8, rows, cols, rows*cols, 1)
		for i, v := range intensities {
			native.RawData[i] = uint8(v)
		}
		return dicom.PixelDataInfo{Frames: []*frame.Frame{{Encapsulated: false, NativeData: native}}}
	}

	native := frame.NewNativeFrame[uint16](16, rows, cols, rows*cols, 1)
	for i, v := range intensities {
		native.RawData[i] = uint16(v)
	}
	return dicom.PixelDataInfo{Frames: []*frame.Frame{{Encapsulated: false, NativeData: native}}}
}

// burnTextInto renders text across the middle of the frame at full
// intensity over a dark outline, mimicking annotations burned into the
// pixels by older modalities.
func burnTextInto(intensities []float64, rows, cols int, maxVal float64, text string) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Ceil()
	if textWidth == 0 {
		return
	}

	src := image.NewRGBA(image.Rect(0, 0, textWidth, glyphHeight))
	drawer := &font.Drawer{
		Dst:  src,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.Point26_6{Y: fixed.I(glyphHeight - 3)},
	}
	drawer.DrawString(text)

	// Scale the rendered text to roughly 60% of the frame width.
	scale := float64(cols) * 0.6 / float64(textWidth)
	if scale < 1 {
		scale = 1
	}
	w := int(float64(textWidth) * scale)
	h := int(float64(glyphHeight) * scale)
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Over, nil)

	x0 := (cols - w) / 2
	y0 := (rows - h) / 2
	outline := max(1, h/12)

	for sy := 0; sy < h; sy++ {
		for sx := 0; sx < w; sx++ {
			if _, _, _, a := scaled.At(sx, sy).RGBA(); a == 0 {
				continue
			}
			for dy := -outline; dy <= outline; dy++ {
				for dx := -outline; dx <= outline; dx++ {
					setIntensity(intensities, rows, cols, x0+sx+dx, y0+sy+dy, 0)
				}
			}
		}
	}
	for sy := 0; sy < h; sy++ {
		for sx := 0; sx < w; sx++ {
			if _, _, _, a := scaled.At(sx, sy).RGBA(); a > 0 {
				setIntensity(intensities, rows, cols, x0+sx, y0+sy, maxVal)
			}
		}
	}
}

func setIntensity(buf []float64, rows, cols, x, y int, v float64) {
	if x < 0 || x >= cols || y < 0 || y >= rows {
		return
	}
	buf[y*cols+x] = v
}
