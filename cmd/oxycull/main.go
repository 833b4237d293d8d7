// Command oxycull runs the GPU-driven culling pipeline in a window, benchmarks it headless on the
// software backend, or validates its WGSL shaders.
//
// Controls of the run command:
//
//	Left drag  - Orbit the camera
//	Scroll     - Zoom
//	Arrows     - Orbit in steps
//	M          - Toggle visibility buffer / deferred shading
//	C          - Toggle async compute
//	P          - Toggle profiler output
//	Esc        - Quit
package main

import (
	"fmt"
	"os"
	"runtime"
)

func init() {
	// glfw and the wgpu surface must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
