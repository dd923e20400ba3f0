package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/profiler"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/scene"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/window"
)

// ErrNoScene is returned by Run when no scene was configured.
var ErrNoScene = errors.New("engine: no scene configured")

// engine implements the Engine interface.
// Coordinates the tick, render and window threads of an interactive map view.
type engine struct {
	tickRateChannel chan time.Duration

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	window     window.Window
	controller viewport.Controller
	scene      scene.Scene

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate   time.Duration
	tickCallback     func(deltaTime float32)
	renderCallback   func(deltaTime float32, stats scene.FrameStats)
	keyCallback      func(keyCode uint32)
	renderFrameLimit time.Duration
}

// Engine is the main entry point of an interactive view. It feeds window input to the viewport
// controller, re-renders the scene through the controller's current viewport and presents it.
type Engine interface {
	// Window returns the underlying window.
	Window() window.Window

	// Controller returns the viewport controller driven by window input.
	Controller() viewport.Controller

	// Scene returns the rendered scene.
	Scene() scene.Scene

	// Profiler returns the frame profiler.
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// ToggleProfiler flips profiling output.
	ToggleProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for item updates such as moving labels or changing priorities.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each presented frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds and the frame's scene statistics
	SetRenderCallback(callback func(deltaTime float32, stats scene.FrameStats))

	// SetKeyCallback registers a handler for key presses not consumed by the map controls.
	//
	// Parameters:
	//   - callback: function receiving the GLFW key code
	SetKeyCallback(callback func(keyCode uint32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the engine loops and blocks until the window closes.
	//
	// Returns:
	//   - error: ErrNoScene if no scene was configured
	Run() error

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine. The window and scene are usually supplied with WithWindow
// and WithScene; the controller defaults to one sized to the window.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}

	if e.controller == nil {
		var opts []viewport.ControllerBuilderOption
		if e.window != nil {
			opts = append(opts, viewport.WithSurfaceSize(e.window.Width(), e.window.Height()))
		}
		e.controller = viewport.NewController(opts...)
	}

	if e.window != nil {
		window.BindController(e.window, e.controller, e.handleKey)
		e.window.SetResizeCallback(func(width, height int) {
			e.controller.Resize(width, height)
			if e.scene != nil {
				if err := e.scene.Renderer().Resize(width, height); err != nil {
					common.Logger().Warn("renderer resize failed", "width", width, "height", height, "error", err)
				}
			}
		})
	}
	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Controller() viewport.Controller {
	return e.controller
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Run() error {
	if e.scene == nil {
		return ErrNoScene
	}
	e.running = true
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	return nil
}

func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// handle launches the tick and render goroutines.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

func (e *engine) handleKey(keyCode uint32) {
	if keyCode == common.KeyP {
		e.ToggleProfiler()
	}
	if e.keyCallback != nil {
		e.keyCallback(keyCode)
	}
}

// handleEngine runs the fixed-rate tick loop. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()
	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the render loop: pick up the controller's viewport, render the scene
// (occlusion pre-render included) and present. Recovers from panics and signals quit.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			common.Logger().Error("render goroutine recovered from panic", "panic", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		e.scene.SetViewport(e.controller.Viewport())
		if err := e.scene.Render(); err != nil {
			common.Logger().Error("frame failed", "scene", e.scene.Name(), "error", err)
			e.signalQuit()
			return
		}
		e.scene.Renderer().Present()
		stats := e.scene.Stats()

		if e.renderCallback != nil {
			e.renderCallback(dt, stats)
		}
		if e.profilingEnabled {
			e.profiler.Record(stats)
			e.profiler.Tick()
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) ToggleProfiler() {
	e.profilingEnabled = !e.profilingEnabled
}

// SetTickRate takes effect immediately when the engine is running.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := frameInterval(fps)
	if !e.running {
		e.engineTickRate = newRate
		return
	}
	// replace any pending update
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32, stats scene.FrameStats)) {
	e.renderCallback = callback
}

func (e *engine) SetKeyCallback(callback func(keyCode uint32)) {
	e.keyCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = frameInterval(fps)
}

// frameInterval converts a positive rate in frames per second to the time between frames.
// Fractional rates are kept; the interval is never shorter than a nanosecond.
func frameInterval(fps float64) time.Duration {
	return max(time.Duration(float64(time.Second)/fps), time.Nanosecond)
}
