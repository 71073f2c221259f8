package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	imgdraw "image/draw"
	"image/gif"
	"io"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/explore.replay/internal/explog"
	"github.com/banshee-data/explore.replay/internal/monitoring"
)

var (
	// ErrNoFrames is returned when there is nothing to animate.
	ErrNoFrames = errors.New("render: no frames")
	// ErrNoBounds is returned when the world extent is empty.
	ErrNoBounds = errors.New("render: empty world bounds")
)

// Defaults for Options fields left zero.
const (
	DefaultCellSize   = 8
	DefaultFrameDelay = 200 * time.Millisecond
)

// Truth is the ground-truth world, drawn faintly under the fog when set.
type Truth interface {
	Obstacle(x, y int) bool
}

// Options controls GIF rendering.
type Options struct {
	CellSize   int           // pixels per grid cell
	FrameDelay time.Duration // delay between frames
	Truth      Truth
}

func (o Options) cellSize() int {
	if o.CellSize <= 0 {
		return DefaultCellSize
	}
	return o.CellSize
}

// delay converts FrameDelay to GIF hundredths of a second.
func (o Options) delay() int {
	d := o.FrameDelay
	if d <= 0 {
		d = DefaultFrameDelay
	}
	if cs := int(d / (10 * time.Millisecond)); cs > 0 {
		return cs
	}
	return 1
}

var (
	fogColor       = color.RGBA{R: 0x1e, G: 0x1e, B: 0x1e, A: 0xff}
	truthWallColor = color.RGBA{R: 0x3c, G: 0x3c, B: 0x46, A: 0xff}
	obstacleColor  = color.RGBA{R: 0x78, G: 0x78, B: 0x78, A: 0xff}
	freeColor      = color.RGBA{R: 0xf0, G: 0xf0, B: 0xdc, A: 0xff}
	selfColor      = color.RGBA{R: 0xff, G: 0xa0, B: 0xa0, A: 0xff}
	robotColor     = color.RGBA{R: 0xdc, G: 0x14, B: 0x14, A: 0xff}
)

func kindColor(k explog.CellKind) color.Color {
	switch k {
	case explog.KindObstacle:
		return obstacleColor
	case explog.KindFree:
		return freeColor
	case explog.KindSelf:
		return selfColor
	default:
		return fogColor
	}
}

// gridLayer is a plot.Plotter drawing one robot's explored cells over the
// fog. World y grows downwards, so rows are flipped onto the plot's y axis.
type gridLayer struct {
	bounds explog.Bounds
	cells  map[explog.Point]explog.CellKind
	truth  Truth
}

var _ plot.Plotter = (*gridLayer)(nil)
var _ plot.DataRanger = (*gridLayer)(nil)

func (g *gridLayer) Plot(c draw.Canvas, plt *plot.Plot) {
	trX, trY := plt.Transforms(&c)
	h := g.bounds.Height
	for y := 0; y < h; y++ {
		for x := 0; x < g.bounds.Width; x++ {
			col := color.Color(fogColor)
			if k, ok := g.cells[explog.Point{X: x, Y: y}]; ok {
				col = kindColor(k)
			} else if g.truth != nil && g.truth.Obstacle(x, y) {
				col = truthWallColor
			}
			x0, x1 := trX(float64(x)), trX(float64(x+1))
			y0, y1 := trY(float64(h-y-1)), trY(float64(h-y))
			c.FillPolygon(col, []vg.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}})
		}
	}
}

func (g *gridLayer) DataRange() (xmin, xmax, ymin, ymax float64) {
	return 0, float64(g.bounds.Width), 0, float64(g.bounds.Height)
}

// panelTitle labels one robot's panel.
func panelTitle(tick int, v *robotView) string {
	if !v.hasPosition {
		return fmt.Sprintf("Tick %d  Robot %d", tick, v.id)
	}
	return fmt.Sprintf("Tick %d  Robot %d: %s", tick, v.id, v.phase)
}

func newPanel(tick int, v *robotView, b explog.Bounds, cell int, truth Truth) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = panelTitle(tick, v)
	p.HideAxes()
	p.BackgroundColor = color.White
	p.X.Min, p.X.Max = 0, float64(b.Width)
	p.Y.Min, p.Y.Max = 0, float64(b.Height)
	p.Add(&gridLayer{bounds: b, cells: v.cells, truth: truth})

	if v.hasPosition && b.Contains(v.position) {
		pos, err := plotter.NewScatter(plotter.XYs{{
			X: float64(v.position.X) + 0.5,
			Y: float64(b.Height-v.position.Y) - 0.5,
		}})
		if err != nil {
			return nil, err
		}
		pos.GlyphStyle.Shape = draw.CircleGlyph{}
		pos.GlyphStyle.Color = robotColor
		pos.GlyphStyle.Radius = vg.Length(0.4 * float64(cell))
		p.Add(pos)
	}
	return p, nil
}

// titleHeight is the room reserved above each panel for its title.
const titleHeight = 18

// panelSize returns the pixel size of one panel including padding.
func panelSize(b explog.Bounds, cell int) (w, h int) {
	const pad = 4
	return b.Width*cell + 2*pad, b.Height*cell + 2*pad + titleHeight
}

// renderFrame draws all panels side by side and quantises the result.
func renderFrame(t *tracker, tick int, b explog.Bounds, opts Options) (*image.Paletted, error) {
	views := t.ordered()
	cell := opts.cellSize()
	pw, ph := panelSize(b, cell)
	width, height := pw*len(views), ph

	plots := make([][]*plot.Plot, 1)
	plots[0] = make([]*plot.Plot, len(views))
	for i, v := range views {
		p, err := newPanel(tick, v, b, cell, opts.Truth)
		if err != nil {
			return nil, fmt.Errorf("robot %d panel: %w", v.id, err)
		}
		plots[0][i] = p
	}

	img := vgimg.NewWith(vgimg.UseWH(vg.Length(width), vg.Length(height)), vgimg.UseDPI(72))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 1, Cols: len(views),
		PadX: 4, PadY: 4,
		PadTop: 2, PadBottom: 2, PadLeft: 2, PadRight: 2,
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range views {
		plots[0][i].Draw(canvases[0][i])
	}

	src := img.Image()
	dst := image.NewPaletted(src.Bounds(), palette.Plan9)
	imgdraw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, imgdraw.Src)
	return dst, nil
}

// GIF renders frames within bounds b as an animated GIF: one image per
// frame, one panel per robot seen anywhere in the run. Robots missing from
// a frame, or whose map could not be aligned, keep their previous view.
func GIF(w io.Writer, frames []explog.Frame, b explog.Bounds, opts Options) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	if b.Empty() {
		return ErrNoBounds
	}

	log := monitoring.Component("render")
	t := newTracker(b, robotIDs(frames))
	anim := &gif.GIF{
		Image: make([]*image.Paletted, 0, len(frames)),
		Delay: make([]int, 0, len(frames)),
	}
	delay := opts.delay()
	for _, f := range frames {
		t.update(f)
		img, err := renderFrame(t, f.Tick(), b, opts)
		if err != nil {
			return fmt.Errorf("failed to render tick %d: %w", f.Tick(), err)
		}
		anim.Image = append(anim.Image, img)
		anim.Delay = append(anim.Delay, delay)
	}

	if err := gif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("failed to encode gif: %w", err)
	}
	log.Info().
		Int("frames", len(frames)).
		Int("robots", len(t.views)).
		Int("width", b.Width).
		Int("height", b.Height).
		Msg("gif rendered")
	return nil
}
