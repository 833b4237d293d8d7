package renderer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cull/engine/renderer/pipeline"
)

// softBuffer is a buffer of 32-bit words in host memory.
type softBuffer struct {
	label     string
	usage     bind_group_provider.BufferUsage
	words     []uint32
	destroyed atomic.Bool
}

var _ bind_group_provider.Buffer = &softBuffer{}

func (b *softBuffer) Label() string {
	return b.label
}

func (b *softBuffer) Size() uint64 {
	return uint64(len(b.words)) * 4
}

func (b *softBuffer) Usage() bind_group_provider.BufferUsage {
	return b.usage
}

// section returns the words covered by s. s must belong to b.
func (b *softBuffer) section(s bind_group_provider.BufferSection) ([]uint32, error) {
	if b.destroyed.Load() {
		return nil, fmt.Errorf("buffer %s used after destroy", b.label)
	}
	if s.Offset%4 != 0 || s.Size%4 != 0 {
		return nil, fmt.Errorf("buffer %s section [%d, +%d) is not word aligned", b.label, s.Offset, s.Size)
	}
	if err := s.Valid(); err != nil {
		return nil, err
	}
	return b.words[s.Offset/4 : (s.Offset+s.Size)/4], nil
}

// softJob is one submission waiting on a queue goroutine.
type softJob struct {
	label    string
	commands []Command
	wait     []*chanSemaphore
	signal   []*chanSemaphore
	fence    *chanFence
}

// softwareRendererBackendImpl executes command lists on the CPU. Each logical queue is a
// goroutine draining its own job channel, so compute and graphics submissions overlap
// exactly as far as their semaphores allow.
type softwareRendererBackendImpl struct {
	mu        sync.Mutex
	pipelines map[string]pipeline.Pipeline
	stats     Stats

	pool    worker.DynamicWorkerPool
	workers int

	queues  [2]chan softJob
	pending sync.WaitGroup
	done    sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	closed  sync.Once

	lost atomic.Bool

	width, height int
	presentMode   PresentMode
	acquired      bool
}

var _ RendererBackend = &softwareRendererBackendImpl{}

func newSoftwareRendererBackend(workers int) *softwareRendererBackendImpl {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &softwareRendererBackendImpl{
		pipelines: make(map[string]pipeline.Pipeline),
		pool:      worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
		workers:   workers,
		ctx:       ctx,
		cancel:    cancel,
	}
	for i := range b.queues {
		b.queues[i] = make(chan softJob, 16)
		b.done.Add(1)
		go b.drain(QueueType(i))
	}
	common.Logger().Info("software backend ready", "workers", workers)
	return b
}

func (b *softwareRendererBackendImpl) drain(queue QueueType) {
	defer b.done.Done()
	for job := range b.queues[queue] {
		b.run(queue, job)
	}
}

func (b *softwareRendererBackendImpl) run(queue QueueType, job softJob) {
	defer b.pending.Done()

	var err error
	for _, s := range job.wait {
		if err = s.wait(b.ctx); err != nil {
			break
		}
	}
	if err == nil {
		err = b.execute(job.commands)
	}
	if err != nil {
		b.lost.Store(true)
		common.Logger().Warn("software submission failed", "queue", queue.String(), "list", job.label, "error", err)
	}
	for _, s := range job.signal {
		s.signal()
	}
	if job.fence != nil {
		job.fence.signal(err)
	}
}

func (b *softwareRendererBackendImpl) RegisterPipeline(p pipeline.Pipeline) error {
	if p.Type() == pipeline.PipelineTypeCompute && p.Kernel() == nil {
		return fmt.Errorf("compute pipeline %s has no kernel", p.PipelineKey())
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pipelines[p.PipelineKey()] = p
	return nil
}

func (b *softwareRendererBackendImpl) CreateBuffer(label string, size uint64, usage bind_group_provider.BufferUsage) (bind_group_provider.Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer %s: zero size", label)
	}
	return &softBuffer{
		label: label,
		usage: usage,
		words: make([]uint32, common.AlignUp(size, 4)/4),
	}, nil
}

func (b *softwareRendererBackendImpl) DestroyBuffer(buf bind_group_provider.Buffer) {
	if sb, ok := buf.(*softBuffer); ok {
		sb.destroyed.Store(true)
	}
}

func (b *softwareRendererBackendImpl) WriteBuffer(buf bind_group_provider.Buffer, offset uint64, data []byte) error {
	sb, ok := buf.(*softBuffer)
	if !ok {
		return fmt.Errorf("buffer %s does not belong to the software backend", buf.Label())
	}
	words, err := sb.section(bind_group_provider.BufferSection{Buffer: sb, Offset: offset, Size: uint64(len(data))})
	if err != nil {
		return err
	}
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return nil
}

func (b *softwareRendererBackendImpl) ReadBuffer(ctx context.Context, section bind_group_provider.BufferSection) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sb, ok := section.Buffer.(*softBuffer)
	if !ok {
		return nil, fmt.Errorf("section does not belong to the software backend")
	}
	words, err := sb.section(section)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(words)*4)
	for i := range words {
		binary.LittleEndian.PutUint32(out[i*4:], atomic.LoadUint32(&words[i]))
	}
	return out, nil
}

func (b *softwareRendererBackendImpl) CreateFence(signaled bool) Fence {
	return newChanFence(signaled)
}

func (b *softwareRendererBackendImpl) CreateSemaphore(label string) Semaphore {
	return newChanSemaphore(label)
}

func (b *softwareRendererBackendImpl) Submit(queue QueueType, list *CommandList, wait, signal []Semaphore, fence Fence) error {
	if b.lost.Load() {
		return ErrDeviceLost
	}
	if err := list.finish(); err != nil {
		return err
	}

	job := softJob{label: list.Label(), commands: append([]Command(nil), list.Commands()...)}
	for _, s := range wait {
		cs, ok := s.(*chanSemaphore)
		if !ok {
			return fmt.Errorf("semaphore %s does not belong to the software backend", s.Label())
		}
		job.wait = append(job.wait, cs)
	}
	for _, s := range signal {
		cs, ok := s.(*chanSemaphore)
		if !ok {
			return fmt.Errorf("semaphore %s does not belong to the software backend", s.Label())
		}
		job.signal = append(job.signal, cs)
	}
	if fence != nil {
		cf, ok := fence.(*chanFence)
		if !ok {
			return errors.New("fence does not belong to the software backend")
		}
		cf.Reset()
		job.fence = cf
	}

	b.mu.Lock()
	b.stats.Submissions++
	b.mu.Unlock()

	b.pending.Add(1)
	select {
	case b.queues[queue] <- job:
		return nil
	case <-b.ctx.Done():
		b.pending.Done()
		return ErrDeviceLost
	}
}

func (b *softwareRendererBackendImpl) AcquireNextSurface() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.acquired {
		return errors.New("previous frame surface not yet presented")
	}
	b.acquired = true
	return nil
}

func (b *softwareRendererBackendImpl) Present() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acquired = false
	return nil
}

func (b *softwareRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width, b.height = width, height
}

func (b *softwareRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentMode = mode
}

func (b *softwareRendererBackendImpl) WaitIdle(ctx context.Context) error {
	idle := make(chan struct{})
	go func() {
		b.pending.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *softwareRendererBackendImpl) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *softwareRendererBackendImpl) Release() {
	b.closed.Do(func() {
		b.cancel()
		for _, q := range b.queues {
			close(q)
		}
		b.done.Wait()
	})
}

// hazard is a buffer range written by a pipeline and not yet covered by a barrier.
type hazard struct {
	section bind_group_provider.BufferSection
	writer  string
}

// execState is the binding state of one command list while it executes.
type execState struct {
	pipeline pipeline.Pipeline
	groups   map[int]bind_group_provider.BindGroupProvider
	pass     RenderPassKind
	index    bind_group_provider.BufferSection
	hazards  []hazard
}

// access is one buffer range touched by a command.
type access struct {
	name     string
	location [2]int
	section  bind_group_provider.BufferSection
	write    bool
}

// softBindings resolves kernel bindings to buffer words.
type softBindings map[[2]int][]uint32

func (s softBindings) Words(group, binding int) []uint32 {
	return s[[2]int{group, binding}]
}

func (b *softwareRendererBackendImpl) execute(commands []Command) error {
	st := &execState{groups: make(map[int]bind_group_provider.BindGroupProvider)}
	for i, cmd := range commands {
		if err := b.executeOne(st, cmd); err != nil {
			return fmt.Errorf("command %d: %w", i, err)
		}
	}
	return nil
}

func (b *softwareRendererBackendImpl) executeOne(st *execState, cmd Command) error {
	switch cmd.Kind {
	case CommandSetPipeline:
		b.mu.Lock()
		_, ok := b.pipelines[cmd.Pipeline.PipelineKey()]
		b.mu.Unlock()
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPipeline, cmd.Pipeline.PipelineKey())
		}
		st.pipeline = cmd.Pipeline

	case CommandSetBindGroup:
		st.groups[cmd.Group] = cmd.Provider

	case CommandDispatch:
		accesses, err := st.pipelineAccesses()
		if err != nil {
			return err
		}
		if err := st.checkHazards(accesses); err != nil {
			return err
		}
		bindings := make(softBindings, len(accesses))
		for _, a := range accesses {
			sb, ok := a.section.Buffer.(*softBuffer)
			if !ok {
				return fmt.Errorf("binding %s does not belong to the software backend", a.name)
			}
			words, err := sb.section(a.section)
			if err != nil {
				return fmt.Errorf("binding %s: %w", a.name, err)
			}
			bindings[a.location] = words
		}
		if err := b.dispatch(st.pipeline, cmd.Workgroups, bindings); err != nil {
			return err
		}
		st.recordWrites(accesses)

		b.mu.Lock()
		b.stats.Dispatches++
		b.stats.Workgroups += uint64(cmd.Workgroups[0]) * uint64(cmd.Workgroups[1]) * uint64(cmd.Workgroups[2])
		b.mu.Unlock()

	case CommandBarrier:
		st.barrier(cmd.Buffers)
		b.mu.Lock()
		b.stats.Barriers++
		b.mu.Unlock()

	case CommandBeginRenderPass:
		st.pass = cmd.Pass
		st.pipeline = nil
		st.index = bind_group_provider.BufferSection{}

	case CommandSetPassInputs, CommandEndRenderPass:

	case CommandSetIndexBuffer:
		st.index = cmd.Section

	case CommandDrawIndexedIndirect:
		accesses, err := st.pipelineAccesses()
		if err != nil {
			return err
		}
		accesses = append(accesses,
			access{name: "index", section: st.index},
			access{name: "indirect", section: cmd.Section},
			access{name: "count", section: cmd.Count},
		)
		if err := st.checkHazards(accesses); err != nil {
			return err
		}
		triangles, draws, err := b.countIndirect(st.index, cmd)
		if err != nil {
			return err
		}
		b.mu.Lock()
		b.stats.DrawCalls += draws
		b.stats.Triangles[st.pass] += triangles
		b.mu.Unlock()

	case CommandDraw:
		accesses, err := st.pipelineAccesses()
		if err != nil {
			return err
		}
		if err := st.checkHazards(accesses); err != nil {
			return err
		}
		b.mu.Lock()
		b.stats.DrawCalls++
		b.stats.Triangles[st.pass] += uint64(cmd.VertexCount / 3)
		b.mu.Unlock()

	case CommandCopyBuffer:
		accesses := []access{
			{name: "copy source", section: cmd.Section},
			{name: "copy destination", section: cmd.Count, write: true},
		}
		if err := st.checkHazards(accesses); err != nil {
			return err
		}
		src, ok1 := cmd.Section.Buffer.(*softBuffer)
		dst, ok2 := cmd.Count.Buffer.(*softBuffer)
		if !ok1 || !ok2 {
			return errors.New("copy between foreign buffers")
		}
		from, err := src.section(cmd.Section)
		if err != nil {
			return err
		}
		to, err := dst.section(cmd.Count)
		if err != nil {
			return err
		}
		copy(to, from)
		st.hazards = append(st.hazards, hazard{section: cmd.Count, writer: "copy"})

	default:
		return fmt.Errorf("unknown command kind %d", cmd.Kind)
	}
	return nil
}

// pipelineAccesses resolves every buffer binding of the bound pipeline to its section.
func (st *execState) pipelineAccesses() ([]access, error) {
	if st.pipeline == nil {
		return nil, errors.New("no pipeline bound")
	}
	var out []access
	seen := make(map[[2]int]bool)
	for _, bd := range st.pipeline.Bindings() {
		if !bd.IsBuffer() || seen[[2]int{bd.Group, bd.Binding}] {
			continue
		}
		seen[[2]int{bd.Group, bd.Binding}] = true

		provider, ok := st.groups[bd.Group]
		if !ok {
			return nil, fmt.Errorf("pipeline %s: group %d not bound", st.pipeline.PipelineKey(), bd.Group)
		}
		section, ok := provider.Section(bd.Binding)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: %s (group %d binding %d) not bound by %s", st.pipeline.PipelineKey(), bd.Name, bd.Group, bd.Binding, provider.Label())
		}
		out = append(out, access{name: bd.Name, location: [2]int{bd.Group, bd.Binding}, section: section, write: bd.Writable()})
	}
	return out, nil
}

func (st *execState) checkHazards(accesses []access) error {
	writer := ""
	if st.pipeline != nil {
		writer = st.pipeline.PipelineKey()
	}
	for _, a := range accesses {
		if a.section.Buffer == nil {
			continue
		}
		for _, h := range st.hazards {
			if h.writer != writer && h.section.Overlaps(a.section) {
				return fmt.Errorf("%w: %s reads %s (%s) written by %s", ErrMissingBarrier, writer, a.name, a.section.Buffer.Label(), h.writer)
			}
		}
	}
	return nil
}

func (st *execState) recordWrites(accesses []access) {
	for _, a := range accesses {
		if a.write {
			st.hazards = append(st.hazards, hazard{section: a.section, writer: st.pipeline.PipelineKey()})
		}
	}
}

func (st *execState) barrier(buffers []bind_group_provider.Buffer) {
	if len(buffers) == 0 {
		st.hazards = st.hazards[:0]
		return
	}
	kept := st.hazards[:0]
	for _, h := range st.hazards {
		covered := false
		for _, buf := range buffers {
			if h.section.Buffer == buf {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, h)
		}
	}
	st.hazards = kept
}

// dispatch runs the kernel over every workgroup on the worker pool and waits for it.
func (b *softwareRendererBackendImpl) dispatch(p pipeline.Pipeline, grid [3]uint32, bindings softBindings) error {
	kernel := p.Kernel()
	if kernel == nil {
		return fmt.Errorf("compute pipeline %s has no kernel", p.PipelineKey())
	}

	total := uint64(grid[0]) * uint64(grid[1]) * uint64(grid[2])
	tasks := uint64(b.workers) * 4
	if total < tasks {
		tasks = total
	}
	per := (total + tasks - 1) / tasks

	var (
		wg       sync.WaitGroup
		panicErr atomic.Pointer[error]
	)
	for t := uint64(0); t < tasks; t++ {
		start, end := t*per, min((t+1)*per, total)
		if start >= end {
			break
		}
		wg.Add(1)
		b.pool.SubmitTask(worker.Task{
			ID: int(t),
			Do: func() (any, error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						err := fmt.Errorf("kernel %s panicked: %v", p.PipelineKey(), r)
						panicErr.CompareAndSwap(nil, &err)
					}
				}()
				for i := start; i < end; i++ {
					id := [3]uint32{
						uint32(i % uint64(grid[0])),
						uint32((i / uint64(grid[0])) % uint64(grid[1])),
						uint32(i / (uint64(grid[0]) * uint64(grid[1]))),
					}
					kernel(id, bindings)
				}
				return nil, nil
			},
		})
	}
	wg.Wait()

	if err := panicErr.Load(); err != nil {
		return *err
	}
	return nil
}

// countIndirect walks the valid indirect records of a draw and counts triangles.
func (b *softwareRendererBackendImpl) countIndirect(index bind_group_provider.BufferSection, cmd Command) (triangles, draws uint64, err error) {
	argsBuf, ok := cmd.Section.Buffer.(*softBuffer)
	if !ok {
		return 0, 0, errors.New("indirect arguments do not belong to the software backend")
	}
	countBuf, ok := cmd.Count.Buffer.(*softBuffer)
	if !ok {
		return 0, 0, errors.New("draw count does not belong to the software backend")
	}
	args, err := argsBuf.section(cmd.Section)
	if err != nil {
		return 0, 0, err
	}
	countWords, err := countBuf.section(cmd.Count)
	if err != nil {
		return 0, 0, err
	}
	if len(countWords) == 0 {
		return 0, 0, errors.New("empty draw count section")
	}

	n := min(countWords[0], cmd.MaxDraws)
	indexWords := index.Size / 4
	for i := uint32(0); i < n; i++ {
		rec := args[i*5 : i*5+5]
		indexCount, firstIndex := uint64(rec[0]), uint64(rec[2])
		if indexCount == 0 {
			continue
		}
		if index.Buffer == nil || firstIndex+indexCount > indexWords {
			return 0, 0, fmt.Errorf("indirect draw %d reads indices [%d, %d) past %d", i, firstIndex, firstIndex+indexCount, indexWords)
		}
		triangles += indexCount / 3
		draws++
	}
	return triangles, draws, nil
}
