package data

import (
	"image"
	_ "image/jpeg" // Essential: Registers JPEG format
	_ "image/png"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// ConvertImage1D decodes an image of any size, resizes it to targetW x targetH
// and returns its grayscale pixels in [0, 1], row by row.
func ConvertImage1D(path string, targetW, targetH int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return Grayscale1D(src, targetW, targetH), nil
}

// Grayscale1D resamples src with Catmull-Rom and converts it to luma with the
// ITU-R 601 weights of color.GrayModel.
func Grayscale1D(src image.Image, targetW, targetH int) []float64 {
	dst := image.NewGray(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Bounds(), draw.Src, nil)

	out := make([]float64, targetW*targetH)
	for y := range targetH {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+targetW]
		for x, v := range row {
			out[y*targetW+x] = float64(v) / 255
		}
	}
	return out
}
