// Package effects applies the canned image filters to pending images.
package effects

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ErrUnknownFilter = errors.New("unknown filter")

type Filter int

const (
	Blur Filter = iota + 1
	GaussianBlur
	Emboss
	Sharpen
	Invert
	Grayscale
	EdgeEnhance
	Contour
)

type filterDef struct {
	name      string
	suffix    string
	transform func(image.Image) image.Image
}

var filterDefs = map[Filter]filterDef{
	Blur: {"Blur", "_blurred", func(img image.Image) image.Image {
		return imaging.Convolve5x5(img, [25]float64{
			1, 1, 1, 1, 1,
			1, 0, 0, 0, 1,
			1, 0, 0, 0, 1,
			1, 0, 0, 0, 1,
			1, 1, 1, 1, 1,
		}, &imaging.ConvolveOptions{Normalize: true})
	}},
	GaussianBlur: {"Gaussian Blur", "_gaussian_blurred", func(img image.Image) image.Image {
		return imaging.Blur(img, 5)
	}},
	Emboss: {"Emboss", "_emboss", func(img image.Image) image.Image {
		return imaging.Convolve3x3(img, [9]float64{
			-1, 0, 0,
			0, 1, 0,
			0, 0, 0,
		}, &imaging.ConvolveOptions{Bias: 128})
	}},
	Sharpen: {"Sharpen", "_sharpen", func(img image.Image) image.Image {
		return imaging.Convolve3x3(img, [9]float64{
			-2, -2, -2,
			-2, 32, -2,
			-2, -2, -2,
		}, &imaging.ConvolveOptions{Normalize: true})
	}},
	Invert: {"Invert", "_inverted", func(img image.Image) image.Image {
		return imaging.Invert(img)
	}},
	Grayscale: {"Grayscale", "_grayscale", func(img image.Image) image.Image {
		return imaging.Grayscale(img)
	}},
	EdgeEnhance: {"Edge Enhance", "_edge_enhanced", func(img image.Image) image.Image {
		return imaging.Convolve3x3(img, [9]float64{
			-1, -1, -1,
			-1, 10, -1,
			-1, -1, -1,
		}, &imaging.ConvolveOptions{Normalize: true})
	}},
	Contour: {"Contour", "_contour", func(img image.Image) image.Image {
		return imaging.Convolve3x3(img, [9]float64{
			-1, -1, -1,
			-1, 8, -1,
			-1, -1, -1,
		}, &imaging.ConvolveOptions{Bias: 255})
	}},
}

var titler = cases.Title(language.English)

// ParseFilter resolves a user-supplied filter name. Case and extra
// whitespace are ignored, so "edge  enhance" selects EdgeEnhance.
func ParseFilter(name string) (Filter, error) {
	normalized := titler.String(strings.ToLower(strings.Join(strings.Fields(name), " ")))
	for f, s := range filterDefs {
		if s.name == normalized {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFilter, name)
}

// Names lists the filters in menu order.
func Names() []string {
	out := make([]string, 0, len(filterDefs))
	for f := Blur; f <= Contour; f++ {
		out = append(out, filterDefs[f].name)
	}
	return out
}

func (f Filter) String() string {
	if s, ok := filterDefs[f]; ok {
		return s.name
	}
	return fmt.Sprintf("Filter(%d)", int(f))
}

func (f Filter) Suffix() string {
	return filterDefs[f].suffix
}

// Transform returns a filtered copy of img. The source is not modified.
func (f Filter) Transform(img image.Image) image.Image {
	return filterDefs[f].transform(img)
}

// OutputPath inserts the filter suffix before the extension of path.
func OutputPath(path string, f Filter) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + f.Suffix() + ext
}
