package fixture

import (
	"testing"

	"github.com/robmorgan/halofx/dmx"
	"github.com/stretchr/testify/require"
)

func TestFixture_CapabilityTraits(t *testing.T) {
	t.Parallel()

	u, _ := dmx.NewUniverse(0, 0)
	f := New("par1", "Left Par", "generic-par")
	f.Sliders[PropertyDimmer] = NewSlider(NewBinding(u, 1))
	f.Colour = NewColour(NewBinding(u, 2), NewBinding(u, 3), NewBinding(u, 4))

	require.True(t, f.HasDimmer())
	require.True(t, f.HasColour())
	require.False(t, f.HasPosition())
	require.False(t, f.HasUv())
	require.False(t, f.HasStrobe())
}

func TestFixture_WithTransactionIsIndependentOfOriginal(t *testing.T) {
	t.Parallel()

	u, _ := dmx.NewUniverse(0, 0)
	f := New("par1", "Left Par", "generic-par")
	f.Sliders[PropertyDimmer] = NewSlider(NewBinding(u, 1))

	dimmer, _ := f.Dimmer()
	require.ErrorIs(t, dimmer.Write(100), ErrNoTransactionBound)

	bound := f.WithTransaction(newFakeTx())
	boundDimmer, ok := bound.Dimmer()
	require.True(t, ok)
	require.NoError(t, boundDimmer.Write(100))

	// The original fixture's property is still unbound.
	dimmer, _ = f.Dimmer()
	require.ErrorIs(t, dimmer.Write(100), ErrNoTransactionBound)
}

func TestFixture_MultiElementKeyAndBinding(t *testing.T) {
	t.Parallel()

	u, _ := dmx.NewUniverse(0, 0)
	f := New("bar1", "Pixel Bar", "pixel-bar-8")
	require.False(t, f.IsMultiElement())

	for i := 0; i < 3; i++ {
		el := f.AddElement("px" + string(rune('1'+i)))
		el.Colour = NewColour(NewBinding(u, i*3+1), NewBinding(u, i*3+2), NewBinding(u, i*3+3))
	}

	require.True(t, f.IsMultiElement())
	require.Len(t, f.Elements, 3)
	require.Equal(t, "bar1.px1", f.Elements[0].Key())
	require.Equal(t, 0, f.Elements[0].Index)
	require.Equal(t, 2, f.Elements[2].Index)
	require.True(t, f.Elements[0].HasColour())

	bound := f.WithTransaction(newFakeTx())
	require.Len(t, bound.Elements, 3)
	require.Equal(t, "bar1.px2", bound.Elements[1].Key())
	boundColour, ok := bound.Elements[1].ColourProperty()
	require.True(t, ok)
	require.NoError(t, boundColour.Write(RGB{R: 1, G: 2, B: 3}))
}
