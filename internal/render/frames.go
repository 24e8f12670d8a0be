package render

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/junkd0g/bubbleflow/internal/chart"
)

// MapFrames renders every frame of anim on up to workers goroutines and
// converts each image with fn. Results are returned in frame order.
func MapFrames[T any](ctx context.Context, r *Renderer, anim *chart.Animation, workers int, fn func(image.Image) (T, error)) ([]T, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]T, anim.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < anim.Len(); i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scene, err := anim.Frame(i)
			if err != nil {
				return err
			}
			v, err := fn(r.Render(scene))
			if err != nil {
				return fmt.Errorf("failed to convert frame %d: %w", i+1, err)
			}
			out[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
