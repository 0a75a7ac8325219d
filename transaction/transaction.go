// Package transaction implements ControllerTransaction, the staging layer
// that batches channel writes across one or more DMX universes and commits
// them to their fade engines as a single unit.
package transaction

import (
	"fmt"

	"github.com/robmorgan/halofx/dmx"
)

// universeFades is the subset of *dmx.ChannelFadeEngine a transaction needs:
// reading the currently materialized value and staging a change.
type universeFades interface {
	Value(channel int) (byte, error)
	Set(channel int, change dmx.ChannelChange) error
}

// Resolver looks up the fade engine backing a universe. Transactions accept
// a resolver rather than a fixed set of engines so a single transaction can
// span every universe a console's fixtures are patched into.
type Resolver func(u dmx.Universe) (universeFades, bool)

// NewMapResolver returns a Resolver backed by a fixed universe->engine map.
// universeFades is unexported, so this is the supported way for callers
// outside this package (engine wiring, cmd entry points, tests) to build a
// Resolver around a set of *dmx.ChannelFadeEngine instances.
func NewMapResolver(engines map[dmx.Universe]*dmx.ChannelFadeEngine) Resolver {
	return func(u dmx.Universe) (universeFades, bool) {
		e, ok := engines[u]
		return e, ok
	}
}

// TransmitSignal is the subset of *dmx.UniverseTransmitter a transaction
// needs to wake a universe's send loop immediately after committing a
// change to it. The transmitter otherwise sends only when woken or, when
// refresh is enabled, once per RefreshInterval.
type TransmitSignal interface {
	RequestTransmit()
}

// TransmitResolver looks up the TransmitSignal for a universe. Wiring one
// into a transaction is optional: Apply commits correctly without it, but
// the change then reaches the wire only on the transmitter's next send for
// another reason (another wake-up, or its periodic refresh when enabled).
type TransmitResolver func(u dmx.Universe) (TransmitSignal, bool)

// NewTransmitResolver returns a TransmitResolver backed by a fixed
// universe->transmitter map.
func NewTransmitResolver(transmitters map[dmx.Universe]*dmx.UniverseTransmitter) TransmitResolver {
	return func(u dmx.Universe) (TransmitSignal, bool) {
		t, ok := transmitters[u]
		return t, ok
	}
}

type stagedValue struct {
	value  byte
	fadeMs int
}

type universeKey struct {
	subnet, universe int
}

// ControllerTransaction stages per-channel writes across possibly many
// universes and applies them atomically: either every staged write reaches
// its fade engine, or none do. A transaction is not safe for concurrent use
// by multiple goroutines; callers stage a batch of writes on one goroutine
// and then commit.
type ControllerTransaction struct {
	resolve Resolver
	notify  TransmitResolver
	staged  map[universeKey]map[int]stagedValue
}

// New returns an empty transaction backed by resolve.
func New(resolve Resolver) *ControllerTransaction {
	return &ControllerTransaction{
		resolve: resolve,
		staged:  make(map[universeKey]map[int]stagedValue),
	}
}

// WithTransmitSignal attaches a TransmitResolver so Apply wakes each
// affected universe's transmitter exactly once after a successful commit.
// Returns tx so callers can chain it onto New at the construction site.
func (tx *ControllerTransaction) WithTransmitSignal(notify TransmitResolver) *ControllerTransaction {
	tx.notify = notify
	return tx
}

func keyFor(u dmx.Universe) universeKey {
	return universeKey{subnet: u.Subnet, universe: u.Universe}
}

// SetValue stages an immediate (fadeMs=0) write to a channel.
func (tx *ControllerTransaction) SetValue(u dmx.Universe, channel int, value byte) error {
	return tx.SetValueFaded(u, channel, value, 0)
}

// SetValueFaded stages a write that interpolates to value over fadeMs
// milliseconds when the transaction is applied.
func (tx *ControllerTransaction) SetValueFaded(u dmx.Universe, channel int, value byte, fadeMs int) error {
	if err := dmx.ValidateChannel(channel); err != nil {
		return err
	}
	key := keyFor(u)
	bucket, ok := tx.staged[key]
	if !ok {
		bucket = make(map[int]stagedValue)
		tx.staged[key] = bucket
	}
	bucket[channel] = stagedValue{value: value, fadeMs: fadeMs}
	return nil
}

// GetValue returns the value a channel would read as if the transaction
// were already applied: the staged value if one has been set within this
// transaction, otherwise the fade engine's current materialized value.
func (tx *ControllerTransaction) GetValue(u dmx.Universe, channel int) (byte, error) {
	if err := dmx.ValidateChannel(channel); err != nil {
		return 0, err
	}
	if bucket, ok := tx.staged[keyFor(u)]; ok {
		if sv, ok := bucket[channel]; ok {
			return sv.value, nil
		}
	}
	engine, ok := tx.resolve(u)
	if !ok {
		return 0, fmt.Errorf("transaction: no fade engine bound for universe %s", u)
	}
	return engine.Value(channel)
}

// Apply commits every staged write to its universe's fade engine. Resolution
// of every staged universe is checked before any write is applied, so a
// transaction touching an unbound universe fails without partially applying.
// Once every write is committed, each affected universe's transmitter (if a
// TransmitResolver was attached via WithTransmitSignal) is woken exactly
// once, so the change reaches the wire on its next frame rather than
// waiting for the transmitter's own refresh interval.
func (tx *ControllerTransaction) Apply() error {
	engines := make(map[universeKey]universeFades, len(tx.staged))
	for key := range tx.staged {
		u := dmx.Universe{Subnet: key.subnet, Universe: key.universe}
		engine, ok := tx.resolve(u)
		if !ok {
			return fmt.Errorf("transaction: no fade engine bound for universe %s, commit aborted", u)
		}
		engines[key] = engine
	}

	for key, bucket := range tx.staged {
		engine := engines[key]
		for channel, sv := range bucket {
			if err := engine.Set(channel, dmx.ChannelChange{TargetValue: sv.value, FadeMs: sv.fadeMs}); err != nil {
				return fmt.Errorf("transaction: commit channel %d: %w", channel, err)
			}
		}
	}

	if tx.notify != nil {
		for key := range tx.staged {
			u := dmx.Universe{Subnet: key.subnet, Universe: key.universe}
			if signal, ok := tx.notify(u); ok {
				signal.RequestTransmit()
			}
		}
	}

	tx.staged = make(map[universeKey]map[int]stagedValue)
	return nil
}

// Discard clears all staged writes without applying them.
func (tx *ControllerTransaction) Discard() {
	tx.staged = make(map[universeKey]map[int]stagedValue)
}

// IsEmpty reports whether any writes are staged.
func (tx *ControllerTransaction) IsEmpty() bool {
	return len(tx.staged) == 0
}
