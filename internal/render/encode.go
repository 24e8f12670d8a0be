package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
)

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}

// PNGBytes encodes img as PNG in memory.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Paletted resizes img to width pixels (keeping the aspect ratio; 0 keeps
// the original size) and dithers it onto the Plan 9 palette for GIF output.
func Paletted(img image.Image, width int) *image.Paletted {
	if width > 0 && width != img.Bounds().Dx() {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}
	b := img.Bounds()
	p := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette.Plan9)
	draw.FloydSteinberg.Draw(p, p.Bounds(), img, b.Min)
	return p
}

// EncodeGIF writes an endlessly looping animated GIF at fps frames per second.
func EncodeGIF(w io.Writer, frames []*image.Paletted, fps int) error {
	if len(frames) == 0 {
		return errors.New("no frames to encode")
	}
	if fps <= 0 {
		fps = 10
	}
	delay := 100 / fps

	anim := &gif.GIF{
		Image:     frames,
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}
	for i := range anim.Delay {
		anim.Delay[i] = delay
	}
	if err := gif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("failed to encode GIF: %w", err)
	}
	return nil
}

// EncodePDF writes img onto a single PDF page of the same physical size.
// widthIn and heightIn are the figure size in inches.
func EncodePDF(w io.Writer, img image.Image, title string, widthIn, heightIn float64) error {
	data, err := PNGBytes(img)
	if err != nil {
		return err
	}

	wPt, hPt := widthIn*72, heightIn*72
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: wPt, Ht: hPt},
	})
	pdf.SetTitle(title, true)
	pdf.SetCreator("bubbleflow", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("chart", opts, bytes.NewReader(data))
	pdf.ImageOptions("chart", 0, 0, wPt, hPt, false, opts, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}
