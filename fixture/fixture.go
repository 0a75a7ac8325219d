package fixture

import "fmt"

// Well-known Slider property names. Custom fixture types may register
// additional named sliders beyond these two.
const (
	PropertyDimmer = "dimmer"
	PropertyUv     = "uv"
)

// propertyBag is the set of typed properties a Fixture or Element may
// expose. Capability is structural: a bag "has" a capability iff the
// corresponding field/key is populated, built once at construction time
// rather than discovered by reflection.
type propertyBag struct {
	Sliders  map[string]*Slider
	Colour   *Colour
	Position *Position
	Settings map[string]*Setting
	Strobe   *Strobe
}

func newPropertyBag() propertyBag {
	return propertyBag{
		Sliders:  make(map[string]*Slider),
		Settings: make(map[string]*Setting),
	}
}

func (b propertyBag) withTransaction(tx Transaction) propertyBag {
	out := newPropertyBag()
	for name, s := range b.Sliders {
		out.Sliders[name] = s.WithTransaction(tx)
	}
	for name, s := range b.Settings {
		out.Settings[name] = s.WithTransaction(tx)
	}
	if b.Colour != nil {
		out.Colour = b.Colour.WithTransaction(tx)
	}
	if b.Position != nil {
		out.Position = b.Position.WithTransaction(tx)
	}
	if b.Strobe != nil {
		out.Strobe = b.Strobe.WithTransaction(tx)
	}
	return out
}

// HasDimmer reports the WithDimmer capability trait.
func (b propertyBag) HasDimmer() bool { _, ok := b.Sliders[PropertyDimmer]; return ok }

// HasUv reports the WithUv capability trait.
func (b propertyBag) HasUv() bool { _, ok := b.Sliders[PropertyUv]; return ok }

// HasColour reports the WithColour capability trait.
func (b propertyBag) HasColour() bool { return b.Colour != nil }

// HasPosition reports the WithPosition capability trait.
func (b propertyBag) HasPosition() bool { return b.Position != nil }

// HasStrobe reports the WithStrobe capability trait.
func (b propertyBag) HasStrobe() bool { return b.Strobe != nil }

// HasSetting reports whether a named Setting is exposed.
func (b propertyBag) HasSetting(name string) bool { _, ok := b.Settings[name]; return ok }

// HasSlider reports whether a named Slider property (including but not
// limited to "dimmer"/"uv") is exposed.
func (b propertyBag) HasSlider(name string) bool { _, ok := b.Sliders[name]; return ok }

// Dimmer returns the dimmer Slider, if any.
func (b propertyBag) Dimmer() (*Slider, bool) { s, ok := b.Sliders[PropertyDimmer]; return s, ok }

// UvSlider returns the UV Slider, if any.
func (b propertyBag) UvSlider() (*Slider, bool) { s, ok := b.Sliders[PropertyUv]; return s, ok }

// SliderProperty returns any named Slider property.
func (b propertyBag) SliderProperty(name string) (*Slider, bool) {
	s, ok := b.Sliders[name]
	return s, ok
}

// ColourProperty returns the Colour property, if any.
func (b propertyBag) ColourProperty() (*Colour, bool) { return b.Colour, b.Colour != nil }

// PositionProperty returns the Position property, if any.
func (b propertyBag) PositionProperty() (*Position, bool) { return b.Position, b.Position != nil }

// SettingProperty returns a named Setting property.
func (b propertyBag) SettingProperty(name string) (*Setting, bool) {
	s, ok := b.Settings[name]
	return s, ok
}

// StrobeProperty returns the Strobe property, if any.
func (b propertyBag) StrobeProperty() (*Strobe, bool) { return b.Strobe, b.Strobe != nil }

// Fixture is a named handle exposing zero or more typed properties. It is
// the unit a group binds and an effect targets.
type Fixture struct {
	Key         string
	DisplayName string
	TypeKey     string

	propertyBag
	Elements []*Element
}

// New returns an unbound Fixture (no transaction attached; reads and writes
// fail with ErrNoTransactionBound until WithTransaction is applied).
func New(key, displayName, typeKey string) *Fixture {
	return &Fixture{
		Key:         key,
		DisplayName: displayName,
		TypeKey:     typeKey,
		propertyBag: newPropertyBag(),
	}
}

// IsMultiElement reports whether the fixture exposes addressable elements.
func (f *Fixture) IsMultiElement() bool { return len(f.Elements) > 0 }

// AddElement appends a new element to the fixture at the next index.
func (f *Fixture) AddElement(suffix string) *Element {
	e := &Element{
		parentKey:   f.Key,
		Index:       len(f.Elements),
		Suffix:      suffix,
		propertyBag: newPropertyBag(),
	}
	f.Elements = append(f.Elements, e)
	return e
}

// WithTransaction returns a structurally identical Fixture whose properties
// (and every element's properties) point to tx; the receiver is unchanged.
func (f *Fixture) WithTransaction(tx Transaction) *Fixture {
	out := &Fixture{
		Key:         f.Key,
		DisplayName: f.DisplayName,
		TypeKey:     f.TypeKey,
		propertyBag: f.propertyBag.withTransaction(tx),
	}
	if len(f.Elements) > 0 {
		out.Elements = make([]*Element, len(f.Elements))
		for i, e := range f.Elements {
			out.Elements[i] = &Element{
				parentKey:   e.parentKey,
				Index:       e.Index,
				Suffix:      e.Suffix,
				propertyBag: e.propertyBag.withTransaction(tx),
			}
		}
	}
	return out
}

// Element is one addressable element of a MultiElementFixture (e.g. one
// pixel of an RGB bar, one head of a multi-head moving light).
type Element struct {
	parentKey string
	Index     int
	Suffix    string

	propertyBag
}

// Key returns the element's qualified key, "{parentKey}.{suffix}".
func (e *Element) Key() string {
	return fmt.Sprintf("%s.%s", e.parentKey, e.Suffix)
}
