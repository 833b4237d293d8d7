// pre_processor.go implements the WGSL include pre-processor. Kernel sources share
// struct layouts (mesh constants, draw slots, lights) that are owned by the Go packages
// defining the matching GPU types. A line of the form
//
//	// @oxy:include mesh_constants
//
// is replaced with the registered WGSL source for that name, so every shader sees the
// exact layout its Go counterpart marshals.
package shader

import (
	"fmt"
	"regexp"
	"strings"
)

var includeRegex = regexp.MustCompile(`^\s*//\s*@oxy:include\s+(\w+)\s*$`)

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// includes maps include names to the WGSL source injected in their place.
	includes map[string]string
}

// PreProcessor resolves include annotations in raw WGSL source.
type PreProcessor interface {
	// Process replaces every include annotation with its registered source. Each name
	// is injected at most once per call; repeated includes are dropped.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code
	//
	// Returns:
	//   - string: the processed WGSL shader source code
	//   - error: an error if an include names an unregistered source
	Process(source string) (string, error)

	// Register adds or replaces an include source.
	//
	// Parameters:
	//   - name: the include name used in annotations
	//   - source: the WGSL source to inject
	Register(name, source string)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor seeded with the given include registry.
//
// Parameters:
//   - includes: include names mapped to their WGSL sources; may be nil
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(includes map[string]string) PreProcessor {
	p := &preProcessor{includes: make(map[string]string, len(includes))}
	for k, v := range includes {
		p.includes[k] = v
	}
	return p
}

func (p *preProcessor) Register(name, source string) {
	p.includes[name] = source
}

func (p *preProcessor) Process(source string) (string, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	seen := make(map[string]bool)

	for i, line := range lines {
		m := includeRegex.FindStringSubmatch(line)
		if m == nil {
			out = append(out, line)
			continue
		}
		name := m[1]
		src, ok := p.includes[name]
		if !ok {
			return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, strings.TrimRight(src, "\n"))
	}
	return strings.Join(out, "\n"), nil
}
