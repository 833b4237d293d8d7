package window

import "github.com/go-gl/glfw/v3.3/glfw"

// Key codes delivered to the key-down callback.
const (
	KeyM     = uint32(glfw.KeyM)
	KeyC     = uint32(glfw.KeyC)
	KeyP     = uint32(glfw.KeyP)
	KeyLeft  = uint32(glfw.KeyLeft)
	KeyRight = uint32(glfw.KeyRight)
	KeyUp    = uint32(glfw.KeyUp)
	KeyDown  = uint32(glfw.KeyDown)
)
