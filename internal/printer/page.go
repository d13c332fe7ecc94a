package printer

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype"
	"golang.org/x/image/font/gofont/goregular"
)

// A4 in inches.
const (
	pageWidthIn  = 8.27
	pageHeightIn = 11.69
	captionPt    = 10
)

// RenderPage lays img out on a white A4 page at dpi, fitted inside half-inch
// margins, with caption drawn along the bottom margin.
func RenderPage(img image.Image, caption string, dpi int) (*image.NRGBA, error) {
	w := int(math.Round(pageWidthIn * float64(dpi)))
	h := int(math.Round(pageHeightIn * float64(dpi)))
	margin := dpi / 2

	page := imaging.New(w, h, color.White)

	fitted := imaging.Fit(img, w-2*margin, h-3*margin, imaging.Lanczos)
	fb := fitted.Bounds()
	x := (w - fb.Dx()) / 2
	y := margin + (h-3*margin-fb.Dy())/2
	page = imaging.Paste(page, fitted, image.Pt(x, y))

	if caption == "" {
		return page, nil
	}

	f, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse caption font: %w", err)
	}
	c := freetype.NewContext()
	c.SetDPI(float64(dpi))
	c.SetFont(f)
	c.SetFontSize(captionPt)
	c.SetClip(page.Bounds())
	c.SetDst(page)
	c.SetSrc(image.Black)
	if _, err := c.DrawString(caption, freetype.Pt(margin, h-margin)); err != nil {
		return nil, fmt.Errorf("draw caption: %w", err)
	}
	return page, nil
}
