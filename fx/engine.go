package fx

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/robmorgan/halofx/distribution"
	"github.com/robmorgan/halofx/dmx"
	"github.com/robmorgan/halofx/effect"
	"github.com/robmorgan/halofx/fixture"
	"github.com/robmorgan/halofx/logging"
	"github.com/robmorgan/halofx/rhythm"
	"github.com/robmorgan/halofx/transaction"
	"github.com/sirupsen/logrus"
)

const positionCenter byte = 128

// propertyHolder is the structural interface both *fixture.Fixture and
// *fixture.Element satisfy via their embedded property-bag methods; it lets
// target expansion treat a whole fixture and one of its elements uniformly.
type propertyHolder interface {
	HasColour() bool
	ColourProperty() (*fixture.Colour, bool)
	HasPosition() bool
	PositionProperty() (*fixture.Position, bool)
	HasSlider(name string) bool
	SliderProperty(name string) (*fixture.Slider, bool)
}

// resolvedProperty is the set of channel bindings a property name resolved
// to on one holder, in a fixed, documented channel order.
type resolvedProperty struct {
	outputType effect.OutputType
	bindings   []fixture.Binding // Slider: [value]; Colour: [R,G,B]; Position: [Pan,Tilt]
}

func resolveProperty(h propertyHolder, name string) (resolvedProperty, bool) {
	switch name {
	case "colour", "color":
		if c, ok := h.ColourProperty(); ok {
			return resolvedProperty{
				outputType: effect.OutputColour,
				bindings:   []fixture.Binding{c.Red.Binding(), c.Green.Binding(), c.Blue.Binding()},
			}, true
		}
		return resolvedProperty{}, false
	case "position":
		if p, ok := h.PositionProperty(); ok {
			return resolvedProperty{
				outputType: effect.OutputPosition,
				bindings:   []fixture.Binding{p.Pan.Binding(), p.Tilt.Binding()},
			}, true
		}
		return resolvedProperty{}, false
	default:
		if s, ok := h.SliderProperty(name); ok {
			return resolvedProperty{outputType: effect.OutputSlider, bindings: []fixture.Binding{s.Binding()}}, true
		}
		return resolvedProperty{}, false
	}
}

// member is one resolved target leaf of an instance's expansion: the
// property-bearing holder, its channel bindings, and its index/size within
// the distribution it participates in.
type member struct {
	holder   propertyHolder
	prop     resolvedProperty
	index    int
	size     int
}

// FxEngine evaluates running FxInstances once per MasterClock tick, blends
// their outputs per channel, and flushes the result through a fresh
// ControllerTransaction every tick.
type FxEngine struct {
	registry *fixture.Registry
	resolve  transaction.Resolver
	log      *logrus.Entry

	mu          sync.Mutex
	instances   map[uint64]*FxInstance
	nextID      uint64
	currentTick uint64
	transmit    transaction.TransmitResolver

	droppedTicks uint64
}

// New returns an FxEngine reading fixture/group topology from registry and
// applying ticks through transactions built against resolve.
func New(registry *fixture.Registry, resolve transaction.Resolver) *FxEngine {
	return &FxEngine{
		registry:  registry,
		resolve:   resolve,
		log:       logging.GetProjectLogger().WithField("component", "fxengine"),
		instances: make(map[uint64]*FxInstance),
	}
}

// SetTransmitResolver wires transmitter wake-up into the tick-commit path:
// every ProcessTick that stages a channel write to a universe signals that
// universe's transmitter once after the commit, so a change reaches the
// wire on its next frame instead of waiting on the transmitter's own
// refresh interval. Optional; leaving it unset (the default) still commits
// writes correctly, but the transmitter then sends them only when something
// else wakes it or, when refresh is enabled, on its next periodic refresh.
func (e *FxEngine) SetTransmitResolver(transmit transaction.TransmitResolver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transmit = transmit
}

func (e *FxEngine) transmitResolver() transaction.TransmitResolver {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transmit
}

// AddEffect validates and publishes a new instance, returning its id.
// Unknown fixture/group keys or a property the target does not expose are
// reported as errors here (the REST layer maps them to 404/400); an
// instance already in the table is never rejected retroactively for a
// target that later becomes invalid — that is a per-tick silent no-op.
func (e *FxEngine) AddEffect(req AddEffectRequest) (uint64, error) {
	req = req.normalized()
	if err := e.validateTarget(req.Target, req.Property, req.Effect.OutputType()); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID

	start := e.currentTick
	if req.Timing.StartOnBeat {
		start = rhythm.NextBeatTick(e.currentTick, e.currentTick%rhythm.TicksPerBeat == 0)
	}

	e.instances[id] = &FxInstance{
		ID:             id,
		Effect:         req.Effect,
		Target:         req.Target,
		Property:       req.Property,
		BeatDivision:   req.BeatDivision,
		BlendMode:      req.BlendMode,
		StepTiming:     req.stepTiming(),
		StartEpochTick: start,
		IsRunning:      true,
		PhaseOffset:    req.PhaseOffset,
		Distribution:   req.Distribution,
		ElementMode:    req.ElementMode,
	}
	return id, nil
}

func (e *FxEngine) validateTarget(target TargetRef, property string, outType effect.OutputType) error {
	switch target.Kind {
	case FixtureTarget:
		f, ok := e.registry.Fixture(target.Key)
		if !ok {
			return fmt.Errorf("fx: unknown fixture %q", target.Key)
		}
		if rp, ok := resolveProperty(f, property); ok && rp.outputType == outType {
			return nil
		}
		for _, el := range f.Elements {
			if rp, ok := resolveProperty(el, property); ok && rp.outputType == outType {
				return nil
			}
		}
		return fmt.Errorf("fx: fixture %q has no %q property", target.Key, property)
	case GroupTarget:
		g, ok := e.registry.Group(target.Key)
		if !ok {
			return fmt.Errorf("fx: unknown group %q", target.Key)
		}
		for _, m := range g.AllMembers() {
			if _, ok := resolveProperty(m.Fixture, property); ok {
				continue
			}
			found := false
			for _, el := range m.Fixture.Elements {
				if _, ok := resolveProperty(el, property); ok {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("fx: group %q has no %q property", target.Key, property)
			}
		}
		return nil
	default:
		return fmt.Errorf("fx: unknown target kind")
	}
}

// UpdateEffect atomically replaces an instance's immutable fields, keeping
// its id, StartEpochTick, and IsRunning.
func (e *FxEngine) UpdateEffect(id uint64, req AddEffectRequest) error {
	req = req.normalized()
	if err := e.validateTarget(req.Target, req.Property, req.Effect.OutputType()); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	existing, ok := e.instances[id]
	if !ok {
		return fmt.Errorf("fx: unknown effect id %d", id)
	}
	e.instances[id] = &FxInstance{
		ID:             id,
		Effect:         req.Effect,
		Target:         req.Target,
		Property:       req.Property,
		BeatDivision:   req.BeatDivision,
		BlendMode:      req.BlendMode,
		StepTiming:     req.stepTiming(),
		StartEpochTick: existing.StartEpochTick,
		IsRunning:      existing.IsRunning,
		PhaseOffset:    req.PhaseOffset,
		Distribution:   req.Distribution,
		ElementMode:    req.ElementMode,
	}
	return nil
}

// SetPhaseOffset, SetDistribution, and SetElementMode update an instance's
// mutable fields in place without touching StartEpochTick or IsRunning.
func (e *FxEngine) SetPhaseOffset(id uint64, offset float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[id]
	if !ok {
		return fmt.Errorf("fx: unknown effect id %d", id)
	}
	inst.PhaseOffset = offset
	return nil
}

// SetDistribution updates an instance's distribution strategy in place.
func (e *FxEngine) SetDistribution(id uint64, d distribution.Strategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[id]
	if !ok {
		return fmt.Errorf("fx: unknown effect id %d", id)
	}
	inst.Distribution = d
	return nil
}

// SetElementMode updates an instance's element mode in place.
func (e *FxEngine) SetElementMode(id uint64, mode ElementMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[id]
	if !ok {
		return fmt.Errorf("fx: unknown effect id %d", id)
	}
	inst.ElementMode = mode
	return nil
}

// RemoveEffect deletes an instance. Any in-flight computation for id this
// tick completes harmlessly; its writes stand until the next tick's reset.
func (e *FxEngine) RemoveEffect(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.instances, id)
}

// Pause marks an instance not-running, excluding it from tick processing
// while preserving its id and StartEpochTick.
func (e *FxEngine) Pause(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[id]
	if !ok {
		return fmt.Errorf("fx: unknown effect id %d", id)
	}
	inst.IsRunning = false
	return nil
}

// Resume marks an instance running again, resuming in phase.
func (e *FxEngine) Resume(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[id]
	if !ok {
		return fmt.Errorf("fx: unknown effect id %d", id)
	}
	inst.IsRunning = true
	return nil
}

// ClearAll removes every instance.
func (e *FxEngine) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.instances = make(map[uint64]*FxInstance)
}

// Snapshot returns a copy of every instance, for REST/WS status endpoints.
func (e *FxEngine) Snapshot() []FxInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]FxInstance, 0, len(e.instances))
	for _, inst := range e.instances {
		out = append(out, *inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DroppedTicks returns the count of ticks conflated away because the
// previous tick was still being processed when a newer one arrived.
func (e *FxEngine) DroppedTicks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.droppedTicks
}

// Run subscribes to clk and processes ticks on a single dedicated goroutine
// until ctx is cancelled. The clock's listener callback must never block,
// so ticks are relayed through a depth-1 channel that always holds the
// newest tick: if ProcessTick is still busy when a new tick arrives, the
// stale one is conflated away and droppedTicks is incremented, rather than
// letting the queue grow or stalling the clock's fan-out.
func (e *FxEngine) Run(ctx context.Context, clk *rhythm.MasterClock) {
	ticks := make(chan rhythm.Tick, 1)

	clk.AddListener(func(t rhythm.Tick) {
		select {
		case ticks <- t:
			return
		default:
		}
		select {
		case <-ticks:
			e.mu.Lock()
			e.droppedTicks++
			e.mu.Unlock()
		default:
		}
		select {
		case ticks <- t:
		default:
		}
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticks:
				if err := e.ProcessTick(t); err != nil {
					e.log.WithError(err).Warn("fx tick processing failed")
				}
			}
		}
	}()
}

// GetEffectsForFixture returns every instance whose resolved target set
// includes key, directly or via group/element expansion.
func (e *FxEngine) GetEffectsForFixture(key string) []FxInstance {
	e.mu.Lock()
	ids := make([]*FxInstance, 0, len(e.instances))
	for _, inst := range e.instances {
		ids = append(ids, inst)
	}
	e.mu.Unlock()

	var out []FxInstance
	for _, inst := range ids {
		if e.targetsFixture(inst, key) {
			out = append(out, *inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *FxEngine) targetsFixture(inst *FxInstance, key string) bool {
	switch inst.Target.Kind {
	case FixtureTarget:
		return inst.Target.Key == key
	case GroupTarget:
		g, ok := e.registry.Group(inst.Target.Key)
		if !ok {
			return false
		}
		for _, m := range g.AllMembers() {
			if m.Fixture.Key == key {
				return true
			}
		}
	}
	return false
}

// GetEffectsForGroup returns every instance whose target ref is exactly
// GroupRef(name); it does not include fixture-targeted instances whose
// resolution happens to touch the group's members.
func (e *FxEngine) GetEffectsForGroup(name string) []FxInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []FxInstance
	for _, inst := range e.instances {
		if inst.Target.Kind == GroupTarget && inst.Target.Key == name {
			out = append(out, *inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveEffectsForFixture removes every instance directly targeting key
// (group-targeted instances that happen to reach key are left alone).
func (e *FxEngine) RemoveEffectsForFixture(key string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for id, inst := range e.instances {
		if inst.Target.Kind == FixtureTarget && inst.Target.Key == key {
			delete(e.instances, id)
			removed++
		}
	}
	return removed
}

// RemoveEffectsForGroup removes every instance whose target ref is
// GroupRef(name).
func (e *FxEngine) RemoveEffectsForGroup(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for id, inst := range e.instances {
		if inst.Target.Kind == GroupTarget && inst.Target.Key == name {
			delete(e.instances, id)
			removed++
		}
	}
	return removed
}

type channelKey struct {
	u       dmx.Universe
	channel int
}

// ProcessTick runs the full per-tick pipeline (reset, per-instance phase,
// expand, blend, flush) for one MasterClock tick. It is meant to be called
// from a single engine goroutine consuming the clock's tick stream; it is
// not safe to call concurrently with itself.
func (e *FxEngine) ProcessTick(tick rhythm.Tick) error {
	e.mu.Lock()
	e.currentTick = tick.Index
	nowTick := tick.Index
	running := make([]*FxInstance, 0, len(e.instances))
	for _, inst := range e.instances {
		if inst.IsRunning {
			running = append(running, inst)
		}
	}
	e.mu.Unlock()

	sort.Slice(running, func(i, j int) bool { return running[i].ID < running[j].ID })

	accumulator := make(map[channelKey]byte)
	touched := make(map[channelKey]effect.OutputType)

	type plan struct {
		inst    *FxInstance
		members []member
	}
	var plans []plan

	for _, inst := range running {
		members, outType, ok := e.expandTarget(inst)
		if !ok {
			continue // Unresolved: silent no-op for this tick.
		}
		plans = append(plans, plan{inst: inst, members: members})
		for _, m := range members {
			for _, b := range m.prop.bindings {
				touched[channelKey{u: b.Universe, channel: b.Channel}] = outType
			}
		}
	}

	// Step 1: reset every touched channel to its neutral value so
	// non-OVERRIDE blends never ratchet across ticks.
	for ck, outType := range touched {
		accumulator[ck] = neutralValue(outType)
	}

	for _, p := range plans {
		processInstance(p.inst, p.members, nowTick, accumulator)
	}

	if len(accumulator) == 0 {
		return nil
	}

	tx := transaction.New(e.resolve).WithTransmitSignal(e.transmitResolver())
	for ck, v := range accumulator {
		if err := tx.SetValue(ck.u, ck.channel, v); err != nil {
			return fmt.Errorf("fx: stage channel %d on %s: %w", ck.channel, ck.u, err)
		}
	}
	return tx.Apply()
}

// neutralValue is always a single byte's worth of zero/center; Colour and
// Position channels are reset per-component since the accumulator is keyed
// per DMX channel, not per property.
func neutralValue(outType effect.OutputType) byte {
	if outType == effect.OutputPosition {
		return positionCenter
	}
	return 0
}

func processInstance(inst *FxInstance, members []member, nowTickU uint64, accumulator map[channelKey]byte) {
	size := len(members)
	if size == 0 {
		return
	}

	effectiveDivision := inst.BeatDivision
	if inst.StepTiming {
		effectiveDivision *= float64(inst.Distribution.DistinctSlots(size))
	}
	if effectiveDivision == 0 {
		effectiveDivision = 1
	}

	nowTick := int64(nowTickU)
	startTick := int64(inst.StartEpochTick)
	ticksSinceStart := nowTick - startTick
	beats := float64(ticksSinceStart) / float64(rhythm.TicksPerBeat)

	baseClock := wrapPhase(beats/effectiveDivision + inst.PhaseOffset)
	chosenClock := baseClock
	slots := inst.Distribution.DistinctSlots(size)
	if inst.Distribution.UsesTrianglePhase() {
		var tri float64
		if baseClock < 0.5 {
			tri = baseClock * 2
		} else {
			tri = 2 * (1 - baseClock)
		}
		chosenClock = tri * float64(slots-1) / float64(slots)
	}

	var lastPhase float64
	for _, m := range members {
		distOff := inst.Distribution.OffsetFor(m.index, m.size)
		memberPhase := wrapPhase(chosenClock + inst.PhaseOffset - distOff)
		lastPhase = memberPhase

		ctx := effect.EffectContext{
			GroupSize:             m.size,
			MemberIndex:           m.index,
			DistributionOffset:    distOff,
			HasDistributionSpread: inst.Distribution.HasSpread(),
			NumDistinctSlots:      inst.Distribution.DistinctSlots(m.size),
			TrianglePhase:         inst.Distribution.UsesTrianglePhase(),
		}

		out := inst.Effect.Calculate(memberPhase, ctx)
		blendMember(m, out, inst.BlendMode, accumulator)
	}

	inst.LastPhase = lastPhase
}

func wrapPhase(x float64) float64 {
	m := math.Mod(x, 1)
	if m < 0 {
		m += 1
	}
	return m
}

func blendMember(m member, out effect.FxOutput, mode BlendMode, accumulator map[channelKey]byte) {
	switch out.Type {
	case effect.OutputSlider:
		blendChannel(accumulator, channelKey{u: m.prop.bindings[0].Universe, channel: m.prop.bindings[0].Channel}, out.Slider, mode)
	case effect.OutputColour:
		blendChannel(accumulator, channelKey{u: m.prop.bindings[0].Universe, channel: m.prop.bindings[0].Channel}, out.Colour.R, mode)
		blendChannel(accumulator, channelKey{u: m.prop.bindings[1].Universe, channel: m.prop.bindings[1].Channel}, out.Colour.G, mode)
		blendChannel(accumulator, channelKey{u: m.prop.bindings[2].Universe, channel: m.prop.bindings[2].Channel}, out.Colour.B, mode)
	case effect.OutputPosition:
		blendChannel(accumulator, channelKey{u: m.prop.bindings[0].Universe, channel: m.prop.bindings[0].Channel}, out.Position.Pan, mode)
		blendChannel(accumulator, channelKey{u: m.prop.bindings[1].Universe, channel: m.prop.bindings[1].Channel}, out.Position.Tilt, mode)
	}
}

func blendChannel(accumulator map[channelKey]byte, ck channelKey, v byte, mode BlendMode) {
	current, ok := accumulator[ck]
	if !ok {
		current = 0
	}
	switch mode {
	case Override:
		accumulator[ck] = v
	case Additive:
		sum := int(current) + int(v)
		if sum > 255 {
			sum = 255
		}
		accumulator[ck] = byte(sum)
	case Multiply:
		product := (int(current) * int(v)) / 255
		if product > 255 {
			product = 255
		}
		accumulator[ck] = byte(product)
	case Max:
		if v > current {
			accumulator[ck] = v
		}
	case Min:
		if !ok || v < current {
			accumulator[ck] = v
		}
	}
}

// expandTarget resolves an instance's TargetRef into a flat member list per
// §4.9 step 3, returning false if the target cannot be resolved this tick.
func (e *FxEngine) expandTarget(inst *FxInstance) ([]member, effect.OutputType, bool) {
	switch inst.Target.Kind {
	case FixtureTarget:
		return e.expandFixture(inst)
	case GroupTarget:
		return e.expandGroup(inst)
	default:
		return nil, 0, false
	}
}

func (e *FxEngine) expandFixture(inst *FxInstance) ([]member, effect.OutputType, bool) {
	f, ok := e.registry.Fixture(inst.Target.Key)
	if !ok {
		return nil, 0, false
	}
	if rp, ok := resolveProperty(f, inst.Property); ok {
		return []member{{holder: f, prop: rp, index: 0, size: 1}}, rp.outputType, true
	}
	if !f.IsMultiElement() {
		return nil, 0, false
	}

	var members []member
	var outType effect.OutputType
	n := len(f.Elements)
	for _, el := range f.Elements {
		rp, ok := resolveProperty(el, inst.Property)
		if !ok {
			return nil, 0, false
		}
		outType = rp.outputType
		members = append(members, member{holder: el, prop: rp, index: el.Index, size: n})
	}
	return members, outType, len(members) > 0
}

func (e *FxEngine) expandGroup(inst *FxInstance) ([]member, effect.OutputType, bool) {
	g, ok := e.registry.Group(inst.Target.Key)
	if !ok {
		return nil, 0, false
	}
	leaves := g.AllMembers()
	if len(leaves) == 0 {
		return nil, 0, false
	}

	allDirect := true
	for _, l := range leaves {
		if _, ok := resolveProperty(l.Fixture, inst.Property); !ok {
			allDirect = false
			break
		}
	}
	if allDirect {
		var members []member
		var outType effect.OutputType
		n := len(leaves)
		for _, l := range leaves {
			rp, _ := resolveProperty(l.Fixture, inst.Property)
			outType = rp.outputType
			members = append(members, member{holder: l.Fixture, prop: rp, index: l.Index, size: n})
		}
		return members, outType, true
	}

	// Fall back to per-element expansion: every leaf must be multi-element
	// and expose the property on its elements.
	for _, l := range leaves {
		if !l.Fixture.IsMultiElement() {
			return nil, 0, false
		}
		for _, el := range l.Fixture.Elements {
			if _, ok := resolveProperty(el, inst.Property); !ok {
				return nil, 0, false
			}
		}
	}

	var members []member
	var outType effect.OutputType
	switch inst.ElementMode {
	case Flat:
		var flat []*fixture.Element
		for _, l := range leaves {
			flat = append(flat, l.Fixture.Elements...)
		}
		n := len(flat)
		for i, el := range flat {
			rp, _ := resolveProperty(el, inst.Property)
			outType = rp.outputType
			members = append(members, member{holder: el, prop: rp, index: i, size: n})
		}
	default: // PerFixture
		for _, l := range leaves {
			n := len(l.Fixture.Elements)
			for _, el := range l.Fixture.Elements {
				rp, _ := resolveProperty(el, inst.Property)
				outType = rp.outputType
				members = append(members, member{holder: el, prop: rp, index: el.Index, size: n})
			}
		}
	}
	return members, outType, len(members) > 0
}
