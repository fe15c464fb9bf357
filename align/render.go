package align

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// OverlayRenderer draws the XY projection of the target cloud and the
// (optionally transformed) reference cloud on top of each other, the
// fastest way to eyeball whether a registration locked on.
type OverlayRenderer struct {
	Reference Cloud
	Target    Cloud
	Transform RigidTransform // applied to Reference before projection

	Padding    float64 // world-unit border around the point extent
	DotRadius  float64 // point radius in world units; 0 derives from extent
	Resolution canvas.Resolution

	RefColor    color.RGBA
	TargetColor color.RGBA
}

// NewOverlayRenderer creates a renderer with default colors: target in
// gray, transformed reference in red.
func NewOverlayRenderer(ref, target Cloud, t RigidTransform) *OverlayRenderer {
	return &OverlayRenderer{
		Reference:   ref,
		Target:      target,
		Transform:   t,
		Resolution:  canvas.DPI(300),
		RefColor:    color.RGBA{200, 40, 40, 255},
		TargetColor: color.RGBA{120, 120, 120, 255},
	}
}

// projected returns the XY projections of both clouds after applying the
// transform to the reference.
func (r *OverlayRenderer) projected() (ref, tgt [][2]float64) {
	ref = make([][2]float64, len(r.Reference))
	for i, p := range r.Reference {
		q := r.Transform.Apply(p.Pos)
		ref[i] = [2]float64{q.X, q.Y}
	}
	tgt = make([][2]float64, len(r.Target))
	for i, p := range r.Target {
		tgt[i] = [2]float64{p.Pos.X, p.Pos.Y}
	}
	return ref, tgt
}

func bounds2(sets ...[][2]float64) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, pts := range sets {
		for _, p := range pts {
			minX = math.Min(minX, p[0])
			minY = math.Min(minY, p[1])
			maxX = math.Max(maxX, p[0])
			maxY = math.Max(maxY, p[1])
		}
	}
	return
}

// canvasRenderer is the subset both the svg and rasterizer backends share.
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the overlay as an SVG to the provided writer.
func (r *OverlayRenderer) RenderToSVG(w io.Writer) error {
	width, height, draw := r.prepare()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("nothing to render: both clouds are empty")
	}
	svgRenderer := svg.New(w, width, height, nil)
	draw(svgRenderer)
	if err := svgRenderer.Close(); err != nil {
		return fmt.Errorf("closing svg renderer: %w", err)
	}
	return nil
}

// RenderToPNG writes the overlay as a PNG to the provided writer.
func (r *OverlayRenderer) RenderToPNG(w io.Writer) error {
	width, height, draw := r.prepare()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("nothing to render: both clouds are empty")
	}
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	draw(rast)
	if err := png.Encode(w, rast); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// prepare computes the canvas size and returns the shared draw routine.
func (r *OverlayRenderer) prepare() (width, height float64, draw func(canvasRenderer)) {
	refPts, tgtPts := r.projected()
	minX, minY, maxX, maxY := bounds2(refPts, tgtPts)
	if math.IsInf(minX, 1) {
		return 0, 0, nil
	}

	extent := math.Max(maxX-minX, maxY-minY)
	padding := r.Padding
	if padding <= 0 {
		padding = extent * 0.05
	}
	dot := r.DotRadius
	if dot <= 0 {
		dot = extent * 0.004
		if dot <= 0 {
			dot = 0.5
		}
	}
	width = (maxX - minX) + 2*padding
	height = (maxY - minY) + 2*padding

	toCanvas := func(p [2]float64) (float64, float64) {
		return p[0] - minX + padding, p[1] - minY + padding
	}

	draw = func(renderer canvasRenderer) {
		bgStyle := canvas.DefaultStyle
		bgStyle.Fill = canvas.Paint{Color: canvas.White}
		renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

		drawSet := func(pts [][2]float64, c color.RGBA) {
			style := canvas.DefaultStyle
			style.Fill = canvas.Paint{Color: c}
			style.Stroke = canvas.Paint{Color: canvas.Transparent}
			for _, p := range pts {
				x, y := toCanvas(p)
				dotPath := canvas.Circle(dot)
				dotPath = dotPath.Translate(x, y)
				renderer.RenderPath(dotPath, style, canvas.Identity)
			}
		}
		// Target underneath, reference on top.
		drawSet(tgtPts, r.TargetColor)
		drawSet(refPts, r.RefColor)
	}
	return width, height, draw
}

// RenderRasterPNG writes a plain raster overlay with a text legend, for
// quick-look output where the vector pipeline is overkill.
func (r *OverlayRenderer) RenderRasterPNG(w io.Writer, size int) error {
	if size <= 0 {
		size = 800
	}
	refPts, tgtPts := r.projected()
	minX, minY, maxX, maxY := bounds2(refPts, tgtPts)
	if math.IsInf(minX, 1) {
		return fmt.Errorf("nothing to render: both clouds are empty")
	}
	extent := math.Max(maxX-minX, maxY-minY)
	if extent <= 0 {
		extent = 1
	}
	scale := float64(size-40) / extent

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.White)
		}
	}

	plot := func(pts [][2]float64, c color.RGBA) {
		for _, p := range pts {
			x := int((p[0]-minX)*scale) + 20
			// Image y grows downward; world y grows upward.
			y := size - 20 - int((p[1]-minY)*scale)
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if image.Pt(x+dx, y+dy).In(img.Rect) {
						img.Set(x+dx, y+dy, c)
					}
				}
			}
		}
	}
	plot(tgtPts, r.TargetColor)
	plot(refPts, r.RefColor)

	drawLabel(img, 10, 16, "target", r.TargetColor)
	drawLabel(img, 10, 32, "reference (aligned)", r.RefColor)

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// drawLabel renders small text onto a raster image.
func drawLabel(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
