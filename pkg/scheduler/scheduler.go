package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/villain/pkg/compiler"
	"github.com/vango-dev/villain/pkg/expr"
	"github.com/vango-dev/villain/pkg/reactive"
	"github.com/vango-dev/villain/pkg/vdom"
)

var (
	// ErrAlreadyMounted is returned by Mount when a root is mounted.
	ErrAlreadyMounted = errors.New("scheduler: root already mounted")

	// ErrUnknownNode is returned by Dispatch for a node without listeners.
	ErrUnknownNode = errors.New("scheduler: node has no listeners")

	// ErrNoListener is returned by Dispatch when the node does not listen
	// to the event.
	ErrNoListener = errors.New("scheduler: no listener for event")
)

// RenderError reports an abandoned render. The instance keeps its previous
// tree.
type RenderError struct {
	Component string
	Instance  InstanceID
	Err       error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("scheduler: render %s#%d: %v", e.Component, e.Instance, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Sink receives the ops of each committed render, in order.
type Sink interface {
	Apply(ops []vdom.Op) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ops []vdom.Op) error

// Apply implements Sink.
func (f SinkFunc) Apply(ops []vdom.Op) error { return f(ops) }

// Config holds scheduler settings.
type Config struct {
	// MaxRendersPerTick bounds the renders of one tick. Remaining dirty
	// instances stay queued for the next tick. Zero means unbounded.
	MaxRendersPerTick int

	// PostBuffer is the capacity of the Post queue (default 64).
	PostBuffer int

	Logger  *slog.Logger
	Metrics *Metrics
	Tracer  trace.Tracer

	// Runtime lets several schedulers share one reactive runtime.
	Runtime *reactive.Runtime

	// OnError receives errors of ticks started by Run. Default: log them.
	OnError func(error)
}

// Option configures a Scheduler.
type Option func(*Config)

// WithMaxRendersPerTick sets the per-tick render budget.
func WithMaxRendersPerTick(n int) Option {
	return func(c *Config) { c.MaxRendersPerTick = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics sets the collectors the scheduler reports to.
func WithMetrics(m *Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithTracer sets the tracer for tick and render spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Config) { c.Tracer = t }
}

// WithRuntime sets the reactive runtime.
func WithRuntime(rt *reactive.Runtime) Option {
	return func(c *Config) { c.Runtime = rt }
}

// WithErrorHandler sets the handler for errors raised inside Run.
func WithErrorHandler(fn func(error)) Option {
	return func(c *Config) { c.OnError = fn }
}

// Scheduler mounts component instances on one host and keeps them current.
// Writes mark instances dirty; Tick renders dirty instances parents first,
// reconciles their trees and hands the ops to the sink.
//
// A Scheduler is not safe for concurrent use. Other goroutines hand work
// to it through Post or Do while Run owns it.
type Scheduler struct {
	config  Config
	rt      *reactive.Runtime
	reg     *compiler.Registry
	rec     *vdom.Reconciler
	sink    Sink
	log     *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	root      *Instance
	nextID    InstanceID
	seq       uint64
	instances map[InstanceID]*Instance
	owners    map[vdom.NodeID]*Instance
	queue     queue
	deferred  []*Instance
	rendering int

	posts chan func()
}

// New creates a scheduler resolving child components in reg and writing
// ops to sink.
func New(reg *compiler.Registry, sink Sink, opts ...Option) *Scheduler {
	config := Config{PostBuffer: 64}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Metrics == nil {
		config.Metrics = NewMetrics()
	}
	if config.Tracer == nil {
		config.Tracer = otel.Tracer("github.com/vango-dev/villain/pkg/scheduler")
	}
	if config.Runtime == nil {
		config.Runtime = reactive.NewRuntime()
	}
	s := &Scheduler{
		config:    config,
		rt:        config.Runtime,
		reg:       reg,
		rec:       vdom.NewReconciler(),
		sink:      sink,
		log:       config.Logger,
		metrics:   config.Metrics,
		tracer:    config.Tracer,
		instances: make(map[InstanceID]*Instance),
		owners:    make(map[vdom.NodeID]*Instance),
		posts:     make(chan func(), config.PostBuffer),
	}
	if s.config.OnError == nil {
		s.config.OnError = func(err error) {
			s.log.Error("tick failed", "error", err)
		}
	}
	return s
}

// Runtime returns the reactive runtime shared by the mounted instances.
func (s *Scheduler) Runtime() *reactive.Runtime { return s.rt }

// Root returns the root instance, or nil.
func (s *Scheduler) Root() *Instance { return s.root }

// Instances returns the number of mounted instances.
func (s *Scheduler) Instances() int { return len(s.instances) }

// Pending returns the number of instances waiting for a render.
func (s *Scheduler) Pending() int { return s.queue.Len() + len(s.deferred) }

// Mount instantiates def as the root with the given props and renders it.
func (s *Scheduler) Mount(ctx context.Context, def *compiler.Definition, props map[string]any) (*Instance, error) {
	if s.root != nil {
		return nil, ErrAlreadyMounted
	}
	inst, err := s.instantiate(def, nil, vdom.RootID, props, nil)
	if err != nil {
		return nil, err
	}
	s.root = inst
	return inst, s.Tick(ctx)
}

// Unmount removes the root and every instance below it from the host and
// releases their state.
func (s *Scheduler) Unmount() error {
	if s.root == nil {
		return nil
	}
	res := s.rec.Reconcile(vdom.RootID, s.root.tree, nil)
	err := s.apply(res.Ops)
	s.teardown(s.root)
	s.root = nil
	return err
}

func (s *Scheduler) instantiate(def *compiler.Definition, parent *Instance, node vdom.NodeID, props map[string]any, listeners map[string]vdom.EventFunc) (*Instance, error) {
	if def.Render == nil {
		return nil, fmt.Errorf("scheduler: %s: %w", def.Name, compiler.ErrNotCompiled)
	}
	s.nextID++
	inst := &Instance{
		id:        s.nextID,
		def:       def,
		parent:    parent,
		node:      node,
		index:     -1,
		listeners: listeners,
		props:     make(map[string]*reactive.Signal),
		children:  make(map[vdom.NodeID]*Instance),
	}
	if parent != nil {
		inst.depth = parent.depth + 1
	}
	inst.graph = s.rt.NewGraph(def.Name, func() { s.invalidate(inst) })
	for _, name := range def.Props {
		inst.props[name] = inst.graph.Signal(props[name], reactive.WithName(name))
	}
	for name, v := range props {
		if _, ok := inst.props[name]; !ok {
			inst.props[name] = inst.graph.Signal(v, reactive.WithName(name))
		}
	}
	inst.ctx = compiler.NewContext(inst.graph, inst.props, func(event string, payload any) error {
		return s.emit(inst, event, payload)
	})
	if def.Setup != nil {
		var err error
		s.rt.Untracked(func() { err = def.Setup(inst.ctx) })
		if err != nil {
			inst.graph.Release()
			return nil, fmt.Errorf("scheduler: setup %s: %w", def.Name, err)
		}
	}
	s.instances[inst.id] = inst
	s.metrics.instances.Inc()
	s.enqueue(inst)
	s.log.Debug("instance mounted", "component", def.Name, "instance", inst.id, "depth", inst.depth)
	return inst, nil
}

// invalidate is the dirty hook of every instance graph.
func (s *Scheduler) invalidate(inst *Instance) {
	if inst.state == Unmounted {
		return
	}
	if s.rendering > 0 {
		// Writes made while a render runs are picked up by the next tick.
		if !inst.deferred && !inst.queued {
			inst.deferred = true
			s.deferred = append(s.deferred, inst)
		}
		return
	}
	s.enqueue(inst)
}

func (s *Scheduler) enqueue(inst *Instance) {
	if inst.queued {
		return
	}
	inst.state = Dirty
	inst.queued = true
	s.seq++
	inst.seq = s.seq
	heap.Push(&s.queue, inst)
}

func (s *Scheduler) dequeue(inst *Instance) {
	if inst.queued {
		heap.Remove(&s.queue, inst.index)
		inst.queued = false
	}
	if inst.deferred {
		inst.deferred = false
		for i, d := range s.deferred {
			if d == inst {
				s.deferred = append(s.deferred[:i], s.deferred[i+1:]...)
				break
			}
		}
	}
}

// Tick renders the dirty instances. Parents render before their children,
// so props written by a parent's commit are seen by the child in the same
// tick. Errors of individual renders are joined; the other instances still
// render.
func (s *Scheduler) Tick(ctx context.Context) error {
	for _, inst := range s.deferred {
		inst.deferred = false
		if inst.state != Unmounted {
			s.enqueue(inst)
		}
	}
	s.deferred = nil
	if s.queue.Len() == 0 {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "villain.tick",
		trace.WithAttributes(attribute.Int("villain.queued", s.queue.Len())))
	defer span.End()
	start := time.Now()

	var errs []error
	renders := 0
	for s.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if max := s.config.MaxRendersPerTick; max > 0 && renders >= max {
			s.log.Debug("render budget exhausted", "renders", renders, "pending", s.queue.Len())
			break
		}
		inst := heap.Pop(&s.queue).(*Instance)
		inst.queued = false
		if err := s.render(ctx, inst); err != nil {
			errs = append(errs, err)
		}
		renders++
	}

	s.metrics.ticks.Inc()
	s.metrics.tickDuration.Observe(time.Since(start).Seconds())
	s.metrics.queueDepth.Set(float64(s.Pending()))
	span.SetAttributes(attribute.Int("villain.renders", renders))

	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Scheduler) render(ctx context.Context, inst *Instance) error {
	name := inst.def.Name
	_, span := s.tracer.Start(ctx, "villain.render", trace.WithAttributes(
		attribute.String("villain.component", name),
		attribute.Int64("villain.instance", int64(inst.id)),
	))
	defer span.End()
	start := time.Now()

	inst.state = Rendering
	s.rendering++
	var out *compiler.Output
	err := inst.graph.Track(func() error {
		var err error
		out, err = inst.def.Render.Render(inst.ctx.Scope())
		return err
	})
	s.rendering--
	inst.state = Clean

	if err != nil {
		s.metrics.renderErrors.WithLabelValues(name).Inc()
		s.log.Error("render abandoned", "component", name, "instance", inst.id, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &RenderError{Component: name, Instance: inst.id, Err: err}
	}

	for _, e := range out.Errors {
		s.log.Warn("expression failed", "component", name, "instance", inst.id, "error", e)
	}
	s.metrics.evalErrors.WithLabelValues(name).Add(float64(len(out.Errors)))

	res := s.rec.Reconcile(inst.node, inst.tree, out.Nodes)
	inst.tree = out.Nodes
	inst.renders++
	span.SetAttributes(attribute.Int("villain.ops", len(res.Ops)))

	err = s.apply(res.Ops)
	if cerr := s.commit(inst, res); cerr != nil {
		err = errors.Join(err, cerr)
	}
	s.metrics.renders.WithLabelValues(name).Inc()
	s.metrics.renderDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Scheduler) apply(ops []vdom.Op) error {
	if len(ops) == 0 {
		return nil
	}
	s.metrics.ops.Add(float64(len(ops)))
	if err := s.sink.Apply(ops); err != nil {
		return fmt.Errorf("scheduler: apply: %w", err)
	}
	return nil
}

// commit brings child instances and listeners in line with inst's new tree.
func (s *Scheduler) commit(inst *Instance, res *vdom.Result) error {
	var errs []error
	for _, id := range res.Unmounted {
		if child, ok := inst.children[id]; ok {
			delete(inst.children, id)
			s.teardown(child)
		}
	}
	for _, v := range res.Updated {
		if child, ok := inst.children[v.ID]; ok {
			s.update(child, v)
		}
	}
	for _, v := range res.Mounted {
		def, err := s.reg.Lookup(v.Tag)
		if err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %s: %w", inst.def.Name, err))
			continue
		}
		child, err := s.instantiate(def, inst, v.ID, v.Props, v.Events)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		inst.children[v.ID] = child
	}
	s.bind(inst)
	return errors.Join(errs...)
}

// update passes a re-rendered component reference to its instance.
func (s *Scheduler) update(child *Instance, v *vdom.VNode) {
	child.listeners = v.Events
	for name, val := range v.Props {
		if sig, ok := child.props[name]; ok {
			sig.Set(val)
			continue
		}
		sig := child.graph.Signal(val, reactive.WithName(name))
		child.props[name] = sig
		child.ctx.Scope().Set(name, sig)
	}
	for name, sig := range child.props {
		if _, ok := v.Props[name]; !ok {
			sig.Set(nil)
		}
	}
}

// bind rebuilds the handler index of inst's tree.
func (s *Scheduler) bind(inst *Instance) {
	for id := range inst.handlers {
		delete(s.owners, id)
	}
	inst.handlers = make(map[vdom.NodeID]map[string]vdom.EventFunc)
	for _, n := range inst.tree {
		n.Walk(func(v *vdom.VNode) {
			if v.Kind == vdom.KindElement && len(v.Events) > 0 {
				inst.handlers[v.ID] = v.Events
				s.owners[v.ID] = inst
			}
		})
	}
}

// teardown unmounts inst and its descendants. Nothing refers to them
// afterwards.
func (s *Scheduler) teardown(inst *Instance) {
	for _, child := range inst.children {
		s.teardown(child)
	}
	s.dequeue(inst)
	for id := range inst.handlers {
		delete(s.owners, id)
	}
	inst.graph.Release()
	inst.state = Unmounted
	inst.children = nil
	inst.handlers = nil
	inst.listeners = nil
	inst.props = nil
	inst.tree = nil
	inst.ctx = nil
	delete(s.instances, inst.id)
	s.metrics.instances.Dec()
	s.log.Debug("instance unmounted", "component", inst.def.Name, "instance", inst.id)
}

func (s *Scheduler) emit(inst *Instance, event string, payload any) error {
	if inst.state == Unmounted {
		return nil
	}
	fn := inst.listeners[event]
	if fn == nil {
		s.log.Debug("event not handled by parent", "component", inst.def.Name, "event", event)
		return nil
	}
	return fn(payload)
}

// Dispatch delivers a host event to the listener of node. Writes made by
// the handler are batched; the affected instances render on the next Tick.
func (s *Scheduler) Dispatch(node vdom.NodeID, event string, payload any) error {
	inst, ok := s.owners[node]
	if !ok {
		return fmt.Errorf("%w: #%d", ErrUnknownNode, node)
	}
	fn := inst.handlers[node][event]
	if fn == nil {
		return fmt.Errorf("%w: %s on #%d", ErrNoListener, event, node)
	}
	var err error
	s.rt.Batch(func() { err = fn(payload) })
	if err != nil {
		var ee *expr.EvalError
		if errors.As(err, &ee) {
			s.metrics.evalErrors.WithLabelValues(inst.def.Name).Inc()
		}
		s.log.Warn("handler failed", "component", inst.def.Name, "event", event, "node", node, "error", err)
		return fmt.Errorf("scheduler: %s on #%d: %w", event, node, err)
	}
	return nil
}

// Snapshot returns the committed trees of all instances composed into one:
// component nodes carry their instance's tree as children. The result
// feeds render.Renderer for server-side HTML.
func (s *Scheduler) Snapshot() []*vdom.VNode {
	if s.root == nil {
		return nil
	}
	return compose(s.root, s.root.tree)
}

func compose(inst *Instance, nodes []*vdom.VNode) []*vdom.VNode {
	out := make([]*vdom.VNode, len(nodes))
	for i, n := range nodes {
		c := *n
		if n.Kind == vdom.KindComponent {
			if child, ok := inst.children[n.ID]; ok {
				c.Children = compose(child, child.tree)
			}
		} else if len(n.Children) > 0 {
			c.Children = compose(inst, n.Children)
		}
		out[i] = &c
	}
	return out
}

// Post queues fn to run on the goroutine executing Run. It blocks while
// the queue is full.
func (s *Scheduler) Post(ctx context.Context, fn func()) error {
	select {
	case s.posts <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the Run goroutine and waits for its result.
func (s *Scheduler) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := s.Post(ctx, func() { done <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted functions and ticks after each batch of them until
// ctx is done. Instances left over by the render budget keep ticking
// without waiting for new work.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if s.Pending() > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case fn := <-s.posts:
				fn()
			default:
			}
		} else {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case fn := <-s.posts:
				fn()
			}
		}
		s.drain()
		if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.config.OnError(err)
		}
	}
}

func (s *Scheduler) drain() {
	for {
		select {
		case fn := <-s.posts:
			fn()
		default:
			return
		}
	}
}
