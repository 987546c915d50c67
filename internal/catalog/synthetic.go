// internal/catalog/synthetic.go
//
// Synthetic catalog: vector shapes rasterized on each lookup, so the server
// is playable without a data directory.

package catalog

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// shape is one drawable entry of the synthetic catalog. Paths are laid out
// on a unit square and scaled to the output size.
type shape struct {
	fill  color.RGBA
	trace func(z *vector.Rasterizer, w, h float32)
}

var syntheticShapes = map[string]shape{
	"Circle": {
		fill:  color.RGBA{R: 220, G: 60, B: 60, A: 255},
		trace: func(z *vector.Rasterizer, w, h float32) { ellipse(z, w, h, 0.5, 0.5, 0.35, false) },
	},
	"Ring": {
		fill: color.RGBA{R: 240, G: 170, B: 30, A: 255},
		trace: func(z *vector.Rasterizer, w, h float32) {
			ellipse(z, w, h, 0.5, 0.5, 0.38, false)
			ellipse(z, w, h, 0.5, 0.5, 0.22, true)
		},
	},
	"Square": {
		fill:  color.RGBA{R: 50, G: 120, B: 220, A: 255},
		trace: func(z *vector.Rasterizer, w, h float32) { polygon(z, w, h, 0.2, 0.2, 0.8, 0.2, 0.8, 0.8, 0.2, 0.8) },
	},
	"Triangle": {
		fill:  color.RGBA{R: 40, G: 170, B: 90, A: 255},
		trace: func(z *vector.Rasterizer, w, h float32) { polygon(z, w, h, 0.5, 0.12, 0.88, 0.85, 0.12, 0.85) },
	},
	"Diamond": {
		fill:  color.RGBA{R: 150, G: 60, B: 200, A: 255},
		trace: func(z *vector.Rasterizer, w, h float32) { polygon(z, w, h, 0.5, 0.1, 0.85, 0.5, 0.5, 0.9, 0.15, 0.5) },
	},
	"Cross": {
		fill: color.RGBA{R: 30, G: 30, B: 30, A: 255},
		trace: func(z *vector.Rasterizer, w, h float32) {
			polygon(z, w, h, 0.4, 0.12, 0.6, 0.12, 0.6, 0.4, 0.88, 0.4, 0.88, 0.6, 0.6, 0.6,
				0.6, 0.88, 0.4, 0.88, 0.4, 0.6, 0.12, 0.6, 0.12, 0.4, 0.4, 0.4)
		},
	},
	"Star": {
		fill:  color.RGBA{R: 250, G: 210, B: 40, A: 255},
		trace: star,
	},
}

// Synthetic renders simple shapes on demand. Output is deterministic.
type Synthetic struct {
	index
	width, height int
}

// NewSynthetic returns a synthetic catalog rendering width×height PNGs.
func NewSynthetic(width, height int) (*Synthetic, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("catalog: invalid synthetic size %dx%d", width, height)
	}
	names := make([]string, 0, len(syntheticShapes))
	for n := range syntheticShapes {
		names = append(names, n)
	}
	ix, err := newIndex(names)
	if err != nil {
		return nil, err
	}
	return &Synthetic{index: ix, width: width, height: height}, nil
}

// SampleOne renders a random shape.
func (s *Synthetic) SampleOne(ctx context.Context) (string, []byte, error) {
	name, err := s.random()
	if err != nil {
		return "", nil, err
	}
	b, err := s.render(name)
	return name, b, err
}

// Lookup renders the shape named id.
func (s *Synthetic) Lookup(ctx context.Context, id string) ([]byte, error) {
	name, ok := s.resolve(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return s.render(name)
}

func (s *Synthetic) render(name string) ([]byte, error) {
	sh := syntheticShapes[name]
	r := image.Rect(0, 0, s.width, s.height)
	dst := image.NewRGBA(r)

	// soft diagonal backdrop so the matrix is not trivially rank 1
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			v := uint8(180 + 60*(x+y)/(s.width+s.height))
			dst.SetRGBA(x, y, color.RGBA{R: v, G: v, B: 255 - v/2, A: 255})
		}
	}

	w, h := float32(s.width), float32(s.height)
	z := vector.NewRasterizer(s.width, s.height)
	sh.trace(z, w, h)
	z.Draw(dst, r, image.NewUniform(sh.fill), image.Point{})

	// outline band for a second tone
	edge := image.NewRGBA(r)
	z.Reset(s.width, s.height)
	ellipse(z, w, h, 0.5, 0.5, 0.47, false)
	ellipse(z, w, h, 0.5, 0.5, 0.45, true)
	z.Draw(edge, r, image.NewUniform(color.RGBA{A: 120}), image.Point{})
	draw.Draw(dst, r, edge, image.Point{}, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("catalog: encode %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// polygon traces a closed path through unit-square points (x0,y0,x1,y1,...).
func polygon(z *vector.Rasterizer, w, h float32, pts ...float32) {
	z.MoveTo(pts[0]*w, pts[1]*h)
	for i := 2; i+1 < len(pts); i += 2 {
		z.LineTo(pts[i]*w, pts[i+1]*h)
	}
	z.ClosePath()
}

// ellipse traces a 64-segment circle of unit radius r around (cx,cy).
// reverse winds the other way, cutting a hole when nested.
func ellipse(z *vector.Rasterizer, w, h, cx, cy, r float32, reverse bool) {
	const segs = 64
	for i := 0; i <= segs; i++ {
		a := 2 * math.Pi * float64(i) / segs
		if reverse {
			a = -a
		}
		x := (cx + r*float32(math.Cos(a))) * w
		y := (cy + r*float32(math.Sin(a))) * h
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
}

func star(z *vector.Rasterizer, w, h float32) {
	pts := make([]float32, 0, 20)
	for i := 0; i < 10; i++ {
		r := 0.4
		if i%2 == 1 {
			r = 0.17
		}
		a := -math.Pi/2 + float64(i)*math.Pi/5
		pts = append(pts, float32(0.5+r*math.Cos(a)), float32(0.52+r*math.Sin(a)))
	}
	polygon(z, w, h, pts...)
}
