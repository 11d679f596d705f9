package render

import (
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/example/captionkit/internal/editor"
)

// kappa places cubic control points so four segments approximate a circle.
const kappa = 0.5522847498

type point struct{ x, y float64 }

// transform maps element-local coordinates (relative to the anchor, before
// scaling) to destination pixels.
type transform struct {
	ox, oy   float64
	sx, sy   float64
	cos, sin float64
	ratio    float64
}

func transformOf(el editor.Element, ratio float64) transform {
	sx, sy := el.ScaleX, el.ScaleY
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	rad := el.Rotation * math.Pi / 180
	return transform{
		ox: el.X * ratio, oy: el.Y * ratio,
		sx: sx, sy: sy,
		cos: math.Cos(rad), sin: math.Sin(rad),
		ratio: ratio,
	}
}

func (t transform) identity() bool {
	return t.sx == 1 && t.sy == 1 && t.sin == 0 && t.cos == 1
}

func (t transform) apply(lx, ly float64) point {
	x, y := lx*t.sx, ly*t.sy
	return point{
		x: t.ox + t.ratio*(x*t.cos-y*t.sin),
		y: t.oy + t.ratio*(x*t.sin+y*t.cos),
	}
}

// segment is a move, line or cubic step of a closed path.
type segment struct {
	op  byte // 'M', 'L' or 'C'
	pts []point
}

func rectPath(t transform, w, h float64) []segment {
	return []segment{
		{'M', []point{t.apply(0, 0)}},
		{'L', []point{t.apply(w, 0)}},
		{'L', []point{t.apply(w, h)}},
		{'L', []point{t.apply(0, h)}},
	}
}

func ellipsePath(t transform, r float64) []segment {
	k := kappa * r
	return []segment{
		{'M', []point{t.apply(r, 0)}},
		{'C', []point{t.apply(r, k), t.apply(k, r), t.apply(0, r)}},
		{'C', []point{t.apply(-k, r), t.apply(-r, k), t.apply(-r, 0)}},
		{'C', []point{t.apply(-r, -k), t.apply(-k, -r), t.apply(0, -r)}},
		{'C', []point{t.apply(k, -r), t.apply(r, -k), t.apply(r, 0)}},
	}
}

// regularPolygonVertices returns the local vertices with the first one
// pointing straight up.
func regularPolygonVertices(sides int, r float64) []point {
	if sides < 3 {
		sides = 3
	}
	pts := make([]point, sides)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(sides)
		pts[i] = point{r * math.Sin(a), -r * math.Cos(a)}
	}
	return pts
}

func regularPolygonPath(t transform, sides int, r float64) []segment {
	verts := regularPolygonVertices(sides, r)
	path := make([]segment, 0, len(verts))
	for i, v := range verts {
		op := byte('L')
		if i == 0 {
			op = 'M'
		}
		path = append(path, segment{op, []point{t.apply(v.x, v.y)}})
	}
	return path
}

func fillPath(dst *image.RGBA, src image.Image, path []segment) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	for _, s := range path {
		switch s.op {
		case 'M':
			z.MoveTo(float32(s.pts[0].x), float32(s.pts[0].y))
		case 'L':
			z.LineTo(float32(s.pts[0].x), float32(s.pts[0].y))
		case 'C':
			z.CubeTo(
				float32(s.pts[0].x), float32(s.pts[0].y),
				float32(s.pts[1].x), float32(s.pts[1].y),
				float32(s.pts[2].x), float32(s.pts[2].y),
			)
		}
	}
	z.ClosePath()
	z.Draw(dst, b, src, image.Point{})
}
