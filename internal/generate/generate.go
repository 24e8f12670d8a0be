// Package generate turns a session into chart artifacts. The CLI, the HTTP
// API and the MCP tools all go through it.
package generate

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/junkd0g/bubbleflow/internal/chart"
	"github.com/junkd0g/bubbleflow/internal/config"
	"github.com/junkd0g/bubbleflow/internal/dataset"
	"github.com/junkd0g/bubbleflow/internal/export"
	"github.com/junkd0g/bubbleflow/internal/render"
	"github.com/junkd0g/bubbleflow/internal/session"
)

// Format is an output file type.
type Format string

const (
	PNG  Format = "png"
	SVG  Format = "svg"
	PDF  Format = "pdf"
	HTML Format = "html"
	GIF  Format = "gif"
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

var contentTypes = map[Format]string{
	PNG:  "image/png",
	SVG:  "image/svg+xml",
	PDF:  "application/pdf",
	HTML: "text/html; charset=utf-8",
	GIF:  "image/gif",
	CSV:  "text/csv; charset=utf-8",
	XLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// StaticFormats and AnimationFormats list what each operation accepts.
var (
	StaticFormats    = []Format{PNG, SVG, PDF}
	AnimationFormats = []Format{HTML, GIF, CSV, XLSX}
)

// ContentType returns the MIME type of f.
func ContentType(f Format) string {
	return contentTypes[f]
}

// Result describes a generated artifact.
type Result struct {
	Filename    string             `json:"filename"`
	ContentType string             `json:"content_type"`
	Frames      int                `json:"frames"`
	Bubbles     int                `json:"bubbles"`
	Encodings   []dataset.Encoding `json:"encodings,omitempty"`
}

// Generator renders sessions. Parsed fonts are cached by name.
type Generator struct {
	workers int
	logger  *zerolog.Logger

	mu    sync.Mutex
	fonts map[string]*render.Fonts
}

// New returns a generator rendering frames on up to workers goroutines;
// zero means GOMAXPROCS.
func New(workers int, logger *zerolog.Logger) *Generator {
	return &Generator{
		workers: workers,
		logger:  logger,
		fonts:   make(map[string]*render.Fonts),
	}
}

func (g *Generator) renderer(p config.Params) (*render.Renderer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	fonts, ok := g.fonts[p.Font]
	if !ok {
		var err error
		fonts, err = render.LoadFonts(p.Font)
		if err != nil {
			return nil, err
		}
		g.fonts[p.Font] = fonts
	}
	return render.New(fonts, p.DPI), nil
}

// Static draws the end state of the selected points.
func (g *Generator) Static(ctx context.Context, s *session.Session, format Format, w io.Writer) (*Result, error) {
	p, _, end, err := s.Resolve()
	if err != nil {
		return nil, err
	}
	scene, encodings, err := chart.Static(end, p)
	if err != nil {
		return nil, fmt.Errorf("failed to build static chart: %w", err)
	}

	started := time.Now()
	switch format {
	case PNG, PDF:
		r, err := g.renderer(p)
		if err != nil {
			return nil, err
		}
		img := r.Render(scene)
		if format == PNG {
			err = render.EncodePNG(w, img)
		} else {
			err = render.EncodePDF(w, img, scene.Title, r.Width, r.Height)
		}
		if err != nil {
			return nil, err
		}
	case SVG:
		if err := export.RenderSVG(ctx, scene, w); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported static format %q", format)
	}

	g.logger.Info().
		Str("format", string(format)).
		Int("bubbles", len(scene.Bubbles)).
		Dur("took", time.Since(started)).
		Msg("static chart generated")

	return &Result{
		Filename:    config.StaticFilename(p.Title, string(format)),
		ContentType: ContentType(format),
		Bubbles:     len(scene.Bubbles),
		Encodings:   encodings,
	}, nil
}

func (g *Generator) animation(s *session.Session) (*chart.Animation, config.Params, error) {
	p, start, end, err := s.Resolve()
	if err != nil {
		return nil, p, err
	}
	anim, err := chart.NewAnimation(start, end, p)
	if err != nil {
		return nil, p, fmt.Errorf("failed to build animation: %w", err)
	}
	return anim, p, nil
}

// Animation renders every frame of the start to end transition.
func (g *Generator) Animation(ctx context.Context, s *session.Session, format Format, w io.Writer) (*Result, error) {
	anim, p, err := g.animation(s)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	switch format {
	case HTML:
		r, err := g.renderer(p)
		if err != nil {
			return nil, err
		}
		frames, err := render.MapFrames(ctx, r, anim, g.workers, render.PNGBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to render frames: %w", err)
		}
		cfg := export.DefaultConfig()
		cfg.Title = p.Title
		cfg.Description = fmt.Sprintf("%s over %d frames", p.Title, anim.Len())
		cfg.Theme = p.Theme
		cfg.IntervalMS = p.IntervalMS
		if err := export.GenerateHTML(w, frames, cfg); err != nil {
			return nil, err
		}
	case GIF:
		r, err := g.renderer(p)
		if err != nil {
			return nil, err
		}
		frames, err := render.MapFrames(ctx, r, anim, g.workers, func(img image.Image) (*image.Paletted, error) {
			return render.Paletted(img, p.GIFWidth), nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to render frames: %w", err)
		}
		if err := render.EncodeGIF(w, frames, p.GIFFPS); err != nil {
			return nil, err
		}
	case CSV:
		if err := export.WriteFrameTable(w, anim, export.FormatCSV); err != nil {
			return nil, err
		}
	case XLSX:
		if err := export.WriteFrameTable(w, anim, export.FormatXLSX); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported animation format %q", format)
	}

	g.logger.Info().
		Str("format", string(format)).
		Int("frames", anim.Len()).
		Int("bubbles", anim.Points()).
		Dur("took", time.Since(started)).
		Msg("animation generated")

	return &Result{
		Filename:    config.AnimationFilename(p.Title, string(format)),
		ContentType: ContentType(format),
		Frames:      anim.Len(),
		Bubbles:     anim.Points(),
		Encodings:   anim.Encodings(),
	}, nil
}

// Frames renders the animation one frame at a time, in order, and hands
// each PNG to fn. Rendering stops at the first error from fn or ctx.
func (g *Generator) Frames(ctx context.Context, s *session.Session, fn func(frame, total int, png []byte) error) (*Result, error) {
	anim, p, err := g.animation(s)
	if err != nil {
		return nil, err
	}
	r, err := g.renderer(p)
	if err != nil {
		return nil, err
	}

	for i := 0; i < anim.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scene, err := anim.Frame(i)
		if err != nil {
			return nil, err
		}
		data, err := render.PNGBytes(r.Render(scene))
		if err != nil {
			return nil, err
		}
		if err := fn(i, anim.Len(), data); err != nil {
			return nil, err
		}
	}

	return &Result{
		Filename:    config.AnimationFilename(p.Title, string(PNG)),
		ContentType: ContentType(PNG),
		Frames:      anim.Len(),
		Bubbles:     anim.Points(),
		Encodings:   anim.Encodings(),
	}, nil
}

// ParseFormat checks name against allowed.
func ParseFormat(name string, allowed []Format) (Format, error) {
	for _, f := range allowed {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported format %q, expected one of %v", name, allowed)
}
