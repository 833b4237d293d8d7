package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pipeline"
)

// CommandKind identifies a recorded command.
type CommandKind int

const (
	CommandSetPipeline CommandKind = iota
	CommandSetBindGroup
	CommandDispatch
	CommandBarrier
	CommandBeginRenderPass
	CommandSetPassInputs
	CommandSetIndexBuffer
	CommandDrawIndexedIndirect
	CommandDraw
	CommandEndRenderPass
	CommandCopyBuffer
)

// Command is one recorded operation. Only the fields relevant to Kind are set.
type Command struct {
	Kind CommandKind

	Pipeline pipeline.Pipeline
	Group    int
	Provider bind_group_provider.BindGroupProvider

	Workgroups [3]uint32
	Buffers    []bind_group_provider.Buffer
	Pass       RenderPassKind

	// Section is the index buffer, the indirect argument records, or the copy source.
	Section bind_group_provider.BufferSection
	// Count is the indirect draw count word, or the copy destination.
	Count bind_group_provider.BufferSection

	MaxDraws    uint32
	VertexCount uint32
}

// CommandList records commands for one queue submission. Recording never touches the
// backend; the first recording error is kept and returned by Renderer.Submit.
type CommandList struct {
	label    string
	commands []Command
	err      error

	inPass   bool
	pipeline pipeline.Pipeline
}

// NewCommandList creates an empty command list.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - *CommandList: the list
func NewCommandList(label string) *CommandList {
	return &CommandList{label: label}
}

// Label returns the debug label.
func (l *CommandList) Label() string {
	return l.label
}

// Commands returns the recorded commands.
func (l *CommandList) Commands() []Command {
	return l.commands
}

// Err returns the first recording error.
func (l *CommandList) Err() error {
	return l.err
}

// Reset clears the list for reuse.
func (l *CommandList) Reset() {
	l.commands = l.commands[:0]
	l.err = nil
	l.inPass = false
	l.pipeline = nil
}

func (l *CommandList) fail(format string, args ...any) {
	if l.err == nil {
		l.err = fmt.Errorf("command list %s: "+format, append([]any{l.label}, args...)...)
	}
}

// SetPipeline binds a compute or render pipeline for the following commands.
//
// Parameters:
//   - p: the pipeline to bind
func (l *CommandList) SetPipeline(p pipeline.Pipeline) {
	if p == nil {
		l.fail("nil pipeline")
		return
	}
	if p.Type() == pipeline.PipelineTypeRender && !l.inPass {
		l.fail("render pipeline %s bound outside a render pass", p.PipelineKey())
		return
	}
	if p.Type() == pipeline.PipelineTypeCompute && l.inPass {
		l.fail("compute pipeline %s bound inside a render pass", p.PipelineKey())
		return
	}
	l.pipeline = p
	l.commands = append(l.commands, Command{Kind: CommandSetPipeline, Pipeline: p})
}

// SetBindGroup binds the buffer sections of a provider at a group index.
//
// Parameters:
//   - group: the bind group index
//   - provider: the provider describing the group's sections
func (l *CommandList) SetBindGroup(group int, provider bind_group_provider.BindGroupProvider) {
	if provider == nil {
		l.fail("nil provider at group %d", group)
		return
	}
	l.commands = append(l.commands, Command{Kind: CommandSetBindGroup, Group: group, Provider: provider})
}

// Dispatch runs the bound compute pipeline over a grid of workgroups.
//
// Parameters:
//   - x, y, z: the workgroup counts
func (l *CommandList) Dispatch(x, y, z uint32) {
	if l.pipeline == nil || l.pipeline.Type() != pipeline.PipelineTypeCompute {
		l.fail("dispatch without a compute pipeline")
		return
	}
	if x == 0 || y == 0 || z == 0 {
		return
	}
	l.commands = append(l.commands, Command{Kind: CommandDispatch, Workgroups: [3]uint32{x, y, z}})
}

// Barrier makes every prior write to the given buffers visible to later commands.
// With no buffers it is a full barrier.
//
// Parameters:
//   - buffers: the buffers the barrier covers
func (l *CommandList) Barrier(buffers ...bind_group_provider.Buffer) {
	if l.inPass {
		l.fail("barrier inside a render pass")
		return
	}
	l.commands = append(l.commands, Command{Kind: CommandBarrier, Buffers: buffers})
}

// BeginRenderPass starts a render pass writing the attachments of kind.
//
// Parameters:
//   - kind: the pass kind
func (l *CommandList) BeginRenderPass(kind RenderPassKind) {
	if l.inPass {
		l.fail("nested render pass %s", kind)
		return
	}
	l.inPass = true
	l.pipeline = nil
	l.commands = append(l.commands, Command{Kind: CommandBeginRenderPass, Pass: kind})
}

// SetPassInputs binds the render targets produced by earlier passes (visibility ids,
// normals, shadow map) at a group index, matched by binding name.
//
// Parameters:
//   - group: the bind group index the bound pipeline declares them in
func (l *CommandList) SetPassInputs(group int) {
	if !l.inPass || l.pipeline == nil {
		l.fail("pass inputs outside a render pass")
		return
	}
	l.commands = append(l.commands, Command{Kind: CommandSetPassInputs, Group: group})
}

// SetIndexBuffer binds a section of 32-bit indices for indexed draws.
//
// Parameters:
//   - section: the index section
func (l *CommandList) SetIndexBuffer(section bind_group_provider.BufferSection) {
	if !l.inPass {
		l.fail("index buffer outside a render pass")
		return
	}
	l.commands = append(l.commands, Command{Kind: CommandSetIndexBuffer, Section: section})
}

// DrawIndexedIndirect issues up to maxDraws indexed draws whose arguments are dense
// five-word records {indexCount, instanceCount, firstIndex, baseVertex, firstInstance}
// at the start of args. The number of valid records is the word at count; records at
// or past it are never drawn and must hold zero index counts.
//
// Parameters:
//   - args: the argument records
//   - count: the 4-byte draw count
//   - maxDraws: the upper bound on records
func (l *CommandList) DrawIndexedIndirect(args, count bind_group_provider.BufferSection, maxDraws uint32) {
	if !l.inPass || l.pipeline == nil {
		l.fail("indirect draw without a render pipeline")
		return
	}
	if uint64(maxDraws)*20 > args.Size {
		l.fail("indirect draw of %d records overruns %d byte section", maxDraws, args.Size)
		return
	}
	if maxDraws == 0 {
		return
	}
	l.commands = append(l.commands, Command{Kind: CommandDrawIndexedIndirect, Section: args, Count: count, MaxDraws: maxDraws})
}

// Draw issues a non-indexed draw of vertexCount vertices.
//
// Parameters:
//   - vertexCount: the vertex count
func (l *CommandList) Draw(vertexCount uint32) {
	if !l.inPass || l.pipeline == nil {
		l.fail("draw without a render pipeline")
		return
	}
	l.commands = append(l.commands, Command{Kind: CommandDraw, VertexCount: vertexCount})
}

// EndRenderPass ends the current render pass.
func (l *CommandList) EndRenderPass() {
	if !l.inPass {
		l.fail("end without a render pass")
		return
	}
	l.inPass = false
	l.pipeline = nil
	l.commands = append(l.commands, Command{Kind: CommandEndRenderPass})
}

// CopyBuffer copies src into dst. Both sections must have the same size.
//
// Parameters:
//   - src: the source section
//   - dst: the destination section
func (l *CommandList) CopyBuffer(src, dst bind_group_provider.BufferSection) {
	if l.inPass {
		l.fail("copy inside a render pass")
		return
	}
	if src.Size != dst.Size {
		l.fail("copy size mismatch %d != %d", src.Size, dst.Size)
		return
	}
	l.commands = append(l.commands, Command{Kind: CommandCopyBuffer, Section: src, Count: dst})
}

// finish validates that the list is complete.
func (l *CommandList) finish() error {
	if l.err != nil {
		return l.err
	}
	if l.inPass {
		return fmt.Errorf("command list %s: render pass not ended", l.label)
	}
	return nil
}
