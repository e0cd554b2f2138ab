package relief

import (
	"errors"
	"fmt"
)

// ExposureCount is the number of layers a three-exposure composite takes.
const ExposureCount = 3

// blendEpsilon absorbs float rounding in the running blend so that layers
// of equal brightness reproduce that brightness after truncation.
const blendEpsilon = 1e-9

var (
	// ErrShapeMismatch is returned when layers differ in shape.
	ErrShapeMismatch = errors.New("hillshade layers differ in shape")
	// ErrOpacityRange is returned for an opacity outside [0, 1].
	ErrOpacityRange = errors.New("opacity outside [0, 1]")
)

// InvalidExposureCountError reports a composite request with the wrong
// number of layers or opacities.
type InvalidExposureCountError struct {
	Shades    int
	Opacities int
	Want      int
}

func (e *InvalidExposureCountError) Error() string {
	return fmt.Sprintf("composite needs %d exposures, got %d shades and %d opacities",
		e.Want, e.Shades, e.Opacities)
}

// Merge composites exactly three shades: the first is the base and each
// following layer is laid over the running result with its opacity. The
// first opacity is accepted but does not affect the result.
func Merge(shades []*Shade, opacities []float64) (*Shade, error) {
	if len(shades) != ExposureCount || len(opacities) != ExposureCount {
		return nil, &InvalidExposureCountError{
			Shades:    len(shades),
			Opacities: len(opacities),
			Want:      ExposureCount,
		}
	}
	return Blend(shades, opacities)
}

// Blend is Merge for any positive number of layers.
func Blend(shades []*Shade, opacities []float64) (*Shade, error) {
	if len(shades) == 0 || len(shades) != len(opacities) {
		return nil, &InvalidExposureCountError{
			Shades:    len(shades),
			Opacities: len(opacities),
			Want:      len(shades),
		}
	}
	for i, o := range opacities {
		if !(o >= 0 && o <= 1) {
			return nil, fmt.Errorf("layer %d: %w: %v", i, ErrOpacityRange, o)
		}
	}
	base := shades[0]
	for i, s := range shades {
		if s == nil {
			return nil, fmt.Errorf("layer %d is nil", i)
		}
		if s.Rows != base.Rows || s.Cols != base.Cols {
			return nil, fmt.Errorf("%w: layer %d is %dx%d, layer 0 is %dx%d",
				ErrShapeMismatch, i, s.Rows, s.Cols, base.Rows, base.Cols)
		}
	}

	out := NewShade(base.Rows, base.Cols)
	for px := range out.Data {
		acc := float64(base.Data[px])
		for i := 1; i < len(shades); i++ {
			o := opacities[i]
			acc = acc*(1-o) + float64(shades[i].Data[px])*o
		}
		out.Data[px] = toByte(acc + blendEpsilon)
	}
	return out, nil
}
