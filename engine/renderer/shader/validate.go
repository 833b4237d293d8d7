package shader

import (
	"fmt"
	"strings"

	"github.com/gogpu/naga"
)

// Validate compiles the shader source with naga to catch WGSL errors before a pipeline
// is created on a device.
//
// Parameters:
//   - s: the shader to validate
//
// Returns:
//   - error: the compile error, or nil if the source is valid
func Validate(s Shader) error {
	if _, err := naga.Compile(s.Source()); err != nil {
		return fmt.Errorf("shader %s: %w", s.Key(), err)
	}
	return nil
}

// Unsupported reports whether a Validate error stems from a WGSL feature the naga
// frontend does not implement yet (runtime-sized arrays, some atomics) rather than
// from a defect in the source.
//
// Parameters:
//   - err: the error returned by Validate
//
// Returns:
//   - bool: true if the error is a known naga limitation
func Unsupported(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"not yet implemented", "not supported", "lowering error", "atomic"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
