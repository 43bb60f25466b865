package postprocess

import (
	"image"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MaskStats summarizes a mask.
type MaskStats struct {
	Min  uint8   `json:"min"`
	Max  uint8   `json:"max"`
	Mean float64 `json:"mean"`
}

// Stats computes the minimum, maximum and mean of a mask. An empty mask yields zero stats.
func Stats(mask *image.Gray) MaskStats {
	if mask == nil {
		return MaskStats{}
	}
	b := mask.Bounds()
	if b.Empty() {
		return MaskStats{}
	}

	values := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := mask.Pix[mask.PixOffset(b.Min.X, y):mask.PixOffset(b.Max.X, y)]
		for _, v := range row {
			values = append(values, float64(v))
		}
	}

	return MaskStats{
		Min:  uint8(floats.Min(values)),
		Max:  uint8(floats.Max(values)),
		Mean: stat.Mean(values, nil),
	}
}
