package render

import (
	"fmt"
	"os"

	"github.com/flopp/go-findfont"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Fonts holds the parsed typefaces used for chart text.
// A parsed font is safe to share; faces are created per render.
type Fonts struct {
	Regular *truetype.Font
	Bold    *truetype.Font
}

// LoadFonts resolves a system font by file name (for example
// "DejaVuSans.ttf"). An empty name selects the embedded Go fonts.
func LoadFonts(name string) (*Fonts, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded bold font: %w", err)
	}
	if name == "" {
		return &Fonts{Regular: regular, Bold: bold}, nil
	}

	path, err := findfont.Find(name)
	if err != nil {
		return nil, fmt.Errorf("failed to find font %q: %w", name, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s: %w", path, err)
	}
	custom, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", path, err)
	}

	// The system font replaces the regular weight; titles keep the embedded bold.
	return &Fonts{Regular: custom, Bold: bold}, nil
}

func (f *Fonts) face(bold bool, points, dpi float64) font.Face {
	ttf := f.Regular
	if bold {
		ttf = f.Bold
	}
	return truetype.NewFace(ttf, &truetype.Options{
		Size:    points,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
}
