package window

import (
	"github.com/Carmen-Shannon/oxy-occlusion/common"
	"github.com/Carmen-Shannon/oxy-occlusion/engine/viewport"
)

// KeyPanStep is the pan distance in pixels of one WASD key press or repeat.
const KeyPanStep = 32

// BindController routes the window's input to a viewport controller: drags pan, the scroll
// wheel zooms about the cursor, WASD pans, Q/E rotate and -/= zoom about the center. Framebuffer
// resizes resize the controller. Key events are also forwarded to keyDown when it is non-nil.
//
// Parameters:
//   - w: the window providing input
//   - c: the controller to drive
//   - keyDown: optional handler for every key press, called after the controller has been updated
func BindController(w Window, c viewport.Controller, keyDown func(keyCode uint32)) {
	w.SetDragCallback(c.Pan)
	w.SetZoomCallback(c.ZoomAt)
	w.SetResizeCallback(c.Resize)
	w.SetKeyDownCallback(func(keyCode uint32) {
		cx, cy := float64(w.Width())/2, float64(w.Height())/2
		switch keyCode {
		case common.KeyW:
			c.Pan(0, KeyPanStep)
		case common.KeyS:
			c.Pan(0, -KeyPanStep)
		case common.KeyA:
			c.Pan(KeyPanStep, 0)
		case common.KeyD:
			c.Pan(-KeyPanStep, 0)
		case common.KeyQ:
			c.Rotate(-1)
		case common.KeyE:
			c.Rotate(1)
		case common.KeyEqual:
			c.ZoomAt(1, cx, cy)
		case common.KeyMinus:
			c.ZoomAt(-1, cx, cy)
		}
		if keyDown != nil {
			keyDown(keyCode)
		}
	})
	c.Resize(w.Width(), w.Height())
}
