// Command occlusion-tui renders a decluttered label map in the terminal with the software backend.
//
// Arrow keys or hjkl pan, +/- zoom, c toggles collision, m toggles masking, p reshuffles
// priorities, i shows the labels identity map instead of the canvas and q or Esc quits.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/drawable"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/renderer"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/scene"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/shading"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

type config struct {
	labels    int
	downscale int
	fitted    float64
	seed      int64
	logFile   string
}

type app struct {
	screen     tcell.Screen
	r          renderer.Renderer
	s          scene.Scene
	controller viewport.Controller
	collision  occlusion.Effect
	mask       occlusion.Effect
	labels     []drawable.Drawable
	rng        *rand.Rand
	downscale  int

	collisionOn  bool
	maskOn       bool
	showIdentity bool
	width        int
	height       int
	frameTime    time.Duration
}

func main() {
	var cfg config
	flag.IntVar(&cfg.labels, "labels", 60, "number of labels")
	flag.IntVar(&cfg.downscale, "downscale", occlusion.DefaultDownscale, "identity map downscale factor")
	flag.Float64Var(&cfg.fitted, "fitted", 0, "fit identity maps to the members' bounds at this resolution (0 uses the full viewport)")
	flag.Int64Var(&cfg.seed, "seed", time.Now().UnixNano(), "random seed for label placement")
	flag.StringVar(&cfg.logFile, "log", "", "write debug logs to this file")
	flag.Parse()

	if cfg.logFile != "" {
		f, err := os.Create(cfg.logFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		common.SetLogger(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer a.cleanup()
	a.run()
}

func newApp(cfg config) (*app, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	a := &app{
		screen:      screen,
		rng:         rand.New(rand.NewSource(cfg.seed)),
		downscale:   cfg.downscale,
		collisionOn: true,
		maskOn:      true,
	}
	a.width, a.height = canvasSize(screen)

	a.r, err = renderer.NewRenderer(renderer.BackendTypeSoftware, nil, renderer.WithCanvasSize(a.width, a.height))
	if err != nil {
		screen.Fini()
		return nil, err
	}

	policy := occlusion.BoundsFullViewport
	if cfg.fitted > 0 {
		policy = occlusion.BoundsFitted(cfg.fitted)
	}
	a.collision, err = occlusion.NewEffect(a.r,
		occlusion.WithLabel("labels"),
		occlusion.WithDownscale(cfg.downscale),
		occlusion.WithBoundsPolicy(policy),
	)
	if err != nil {
		a.cleanup()
		return nil, err
	}
	a.mask, err = occlusion.NewEffect(a.r, occlusion.WithMode(occlusion.ModeMask), occlusion.WithLabel("land"))
	if err != nil {
		a.cleanup()
		return nil, err
	}

	world := float64(max(a.width, a.height))
	a.controller = viewport.NewController(
		viewport.WithSurfaceSize(a.width, a.height),
		viewport.WithInitialView(world/2, world/2, 0, 0),
		viewport.WithZoomSpeed(0.5),
	)
	a.s, err = scene.NewScene("tui", a.r, a.controller.Viewport(),
		scene.WithEffects(a.collision, a.mask),
		scene.WithItems(a.populate(cfg.labels, world)...),
		scene.WithBackground([4]float32{0.05, 0.06, 0.1, 1}),
	)
	if err != nil {
		a.cleanup()
		return nil, err
	}
	return a, nil
}

// canvasSize maps the terminal to pixels: one column per pixel, two rows per cell with half blocks.
// The last row is kept for the status line.
func canvasSize(screen tcell.Screen) (int, int) {
	w, h := screen.Size()
	return max(w, 8), max(h-1, 4) * 2
}

// populate builds a land polygon, a few masked markers and the colliding labels.
func (a *app) populate(n int, world float64) []drawable.Drawable {
	items := []drawable.Drawable{
		drawable.NewDrawable(
			drawable.WithID(1),
			drawable.WithMaskSource("land"),
			drawable.WithShape(drawable.Polygon{Points: [][2]float64{
				{0.1 * world, 0.2 * world}, {0.55 * world, 0.1 * world}, {0.6 * world, 0.7 * world}, {0.2 * world, 0.9 * world},
			}}),
		),
	}
	for i := 0; i < 12; i++ {
		items = append(items, drawable.NewDrawable(
			drawable.WithID(uint32(100+i)),
			drawable.WithMaskedBy("land"),
			drawable.WithPosition(a.rng.Float64()*world, a.rng.Float64()*world),
			drawable.WithShape(drawable.Circle{Radius: 3}),
			drawable.WithHexColor("#3fbf5f"),
		))
	}

	palette := colorful.FastHappyPalette(max(n, 1))
	a.labels = a.labels[:0]
	for i := 0; i < n; i++ {
		label := newLabel(uint32(1000+i), a.rng.Float64()*world, a.rng.Float64()*world,
			float64(6+a.rng.Intn(10)), a.rng.Float64()*100, palette[i].Hex(), a.downscale)
		a.labels = append(a.labels, label)
		items = append(items, label)
	}
	return items
}

// labelHeight is the label height in canvas pixels, two terminal rows.
const labelHeight = 4

// labelPadding widens a label's identity footprint past the consumer's sampling window so a label
// nothing overlaps stays fully visible. Terminal labels are only a few pixels tall.
func labelPadding(downscale int) float64 {
	return float64(2 * shading.WindowRadius * max(downscale, 1))
}

// newLabel builds one colliding label on the "labels" channel.
func newLabel(id uint32, x, y, width, priority float64, hex string, downscale int) drawable.Drawable {
	return drawable.NewDrawable(
		drawable.WithID(id),
		drawable.WithCollision("labels"),
		drawable.WithPosition(x, y),
		drawable.WithShape(drawable.Rect{Width: width, Height: labelHeight}),
		drawable.WithTestOverrides(drawable.TestOverrides{PixelPadding: labelPadding(downscale)}),
		drawable.WithPriority(priority),
		drawable.WithHexColor(hex),
	)
}

func (a *app) run() {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	for {
		select {
		case ev := <-events:
			if !a.handleEvent(ev) {
				return
			}
		case <-ticker.C:
			a.draw()
		}
	}
}

func (a *app) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		step := float64(a.width) / 8
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyLeft:
			a.controller.Pan(step, 0)
		case tcell.KeyRight:
			a.controller.Pan(-step, 0)
		case tcell.KeyUp:
			a.controller.Pan(0, step)
		case tcell.KeyDown:
			a.controller.Pan(0, -step)
		case tcell.KeyRune:
			return a.handleRune(ev.Rune(), step)
		}
	case *tcell.EventResize:
		a.screen.Sync()
		a.width, a.height = canvasSize(a.screen)
		if err := a.r.Resize(a.width, a.height); err != nil {
			common.Logger().Warn("canvas resize failed", "error", err)
		}
		a.controller.Resize(a.width, a.height)
	}
	return true
}

func (a *app) handleRune(r rune, step float64) bool {
	cx, cy := float64(a.width)/2, float64(a.height)/2
	switch r {
	case 'q':
		return false
	case 'h':
		a.controller.Pan(step, 0)
	case 'l':
		a.controller.Pan(-step, 0)
	case 'k':
		a.controller.Pan(0, step)
	case 'j':
		a.controller.Pan(0, -step)
	case '+', '=':
		a.controller.ZoomAt(1, cx, cy)
	case '-':
		a.controller.ZoomAt(-1, cx, cy)
	case 'c':
		a.collisionOn = !a.collisionOn
		for _, label := range a.labels {
			label.SetEnabled(a.collisionOn)
		}
	case 'm':
		a.maskOn = !a.maskOn
		for _, item := range a.s.Items() {
			if item.Operation() == drawable.OperationMask || item.MaskChannel() != "" {
				item.SetEnabled(a.maskOn)
			}
		}
	case 'i':
		a.showIdentity = !a.showIdentity
	case 'p':
		for _, label := range a.labels {
			p := a.rng.Float64() * 100
			label.SetPriority(func() float64 { return p })
		}
	}
	return true
}

func (a *app) draw() {
	start := time.Now()
	a.s.SetViewport(a.controller.Viewport())
	if err := a.s.Render(); err != nil {
		common.Logger().Error("frame failed", "error", err)
		return
	}
	a.frameTime = time.Since(start)

	pixels, err := a.r.ReadPixels(a.viewTarget())
	if err != nil {
		common.Logger().Error("readback failed", "error", err)
		return
	}
	// identity maps are downscaled; stretch them over the canvas
	sx := float64(pixels.Width) / float64(a.width)
	sy := float64(pixels.Height) / float64(a.height)
	cols, rows := a.screen.Size()
	for y := 0; y < rows-1; y++ {
		for x := 0; x < cols; x++ {
			px := int(float64(x) * sx)
			top := pixels.At(px, int(float64(2*y)*sy))
			bottom := pixels.At(px, int(float64(2*y+1)*sy))
			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(top[0]), int32(top[1]), int32(top[2]))).
				Background(tcell.NewRGBColor(int32(bottom[0]), int32(bottom[1]), int32(bottom[2])))
			a.screen.SetContent(x, y, '▀', nil, style)
		}
	}
	a.drawStatus(cols, rows-1)
	a.screen.Show()
}

// viewTarget returns the target shown on screen: the canvas, or the labels identity map
// when it is toggled on and published.
func (a *app) viewTarget() renderer.RenderTarget {
	if !a.showIdentity {
		return nil
	}
	params, err := a.collision.ModuleParameters()
	if err != nil {
		return nil
	}
	if ch, ok := params.Channels["labels"]; ok && ch.Enabled {
		return ch.Target
	}
	return nil
}

func (a *app) drawStatus(cols, row int) {
	st := a.s.Stats()
	es := a.collision.Stats()
	status := fmt.Sprintf(" drawn %d  hidden %d  decluttered %d  identity renders %d/%d skipped  %s  collision:%v mask:%v ",
		st.Drawn, st.Hidden, st.Discarded, es.Renders, es.Skipped, a.frameTime.Round(time.Microsecond), a.collisionOn, a.maskOn)
	style := tcell.StyleDefault.Reverse(true)
	for x := 0; x < cols; x++ {
		ch := ' '
		if x < len(status) {
			ch = rune(status[x])
		}
		a.screen.SetContent(x, row, ch, nil, style)
	}
}

func (a *app) cleanup() {
	if a.s != nil {
		a.s.Release()
	}
	if a.r != nil {
		a.r.Release()
	}
	a.screen.Fini()
}
