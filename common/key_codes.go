package common

// Key codes used by the map controls. Values match GLFW key codes, which use ASCII for
// printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyW     = 87 // pan up
	KeyA     = 65 // pan left
	KeyS     = 83 // pan down
	KeyD     = 68 // pan right
	KeyQ     = 81 // rotate counter-clockwise
	KeyE     = 69 // rotate clockwise
	KeyC     = 67 // toggle collision
	KeyM     = 77 // toggle masking
	KeyP     = 80 // toggle profiler output
	KeyMinus = 45
	KeyEqual = 61
	KeySpace = 32
	KeyEsc   = 256
)
