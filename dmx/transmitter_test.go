package dmx

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

type fakeSender struct {
	sent    [][]byte
	failing bool
	err     error
}

func (f *fakeSender) Send(packet []byte) error {
	if f.failing {
		return f.err
	}
	f.sent = append(f.sent, packet)
	return nil
}

func (f *fakeSender) Close() error { return nil }

func newTestTransmitter(t *testing.T, sender *fakeSender, needsRefresh bool) (*UniverseTransmitter, *clocktesting.FakeClock) {
	t.Helper()
	clk := clocktesting.NewFakeClock(time.Unix(0, 0))
	u, err := NewUniverse(0, 1)
	require.NoError(t, err)
	return newUniverseTransmitter(u, sender, needsRefresh, clk), clk
}

func TestUniverseTransmitter_SendEmitsPacketAndFansOutDirty(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tx, _ := newTestTransmitter(t, sender, false)

	var received map[int]byte
	tx.AddListener(func(changes map[int]byte) {
		received = changes
	})

	require.NoError(t, tx.Fades().Set(1, ChannelChange{TargetValue: 128}))
	require.NoError(t, tx.send())

	require.Len(t, sender.sent, 1)
	require.Len(t, sender.sent[0], artNetPacketSize)
	require.Equal(t, byte(128), sender.sent[0][artNetHeaderSize])
	require.Equal(t, map[int]byte{1: 128}, received)
}

func TestUniverseTransmitter_SequenceIncrements(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tx, _ := newTestTransmitter(t, sender, false)

	require.NoError(t, tx.send())
	require.NoError(t, tx.send())

	require.Equal(t, byte(0), sender.sent[0][12])
	require.Equal(t, byte(1), sender.sent[1][12])
}

func TestUniverseTransmitter_RequestTransmitConflates(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	tx, _ := newTestTransmitter(t, sender, false)

	tx.RequestTransmit()
	tx.RequestTransmit()
	tx.RequestTransmit()

	select {
	case <-tx.wake:
	default:
		t.Fatal("expected a pending wake signal")
	}
	select {
	case <-tx.wake:
		t.Fatal("expected repeated requests to be conflated into one")
	default:
	}
}

func TestUniverseTransmitter_StaysLiveBelowMaxConsecutiveErrors(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{failing: true, err: errors.New("boom")}
	tx, _ := newTestTransmitter(t, sender, false)

	for i := 0; i < MaxConsecutiveSendErrors-1; i++ {
		err := tx.send()
		require.Error(t, err)
		terminal, _ := tx.Terminal()
		require.False(t, terminal)
		require.False(t, tx.handleSendError(err))
	}

	terminal, terr := tx.Terminal()
	require.False(t, terminal)
	require.NoError(t, terr)
}

func TestUniverseTransmitter_TerminatesAfterMaxConsecutiveErrors(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{failing: true, err: errors.New("boom")}
	tx, _ := newTestTransmitter(t, sender, false)

	var wentTerminal bool
	for i := 0; i < MaxConsecutiveSendErrors; i++ {
		err := tx.send()
		require.Error(t, err)
		if tx.handleSendError(err) {
			wentTerminal = true
			break
		}
	}

	require.True(t, wentTerminal)
	terminal, terr := tx.Terminal()
	require.True(t, terminal)
	require.Error(t, terr)
}

func TestUniverseTransmitter_SuccessResetsConsecutiveErrorCount(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{failing: true, err: errors.New("boom")}
	tx, _ := newTestTransmitter(t, sender, false)

	for i := 0; i < MaxConsecutiveSendErrors-1; i++ {
		err := tx.send()
		tx.handleSendError(err)
	}

	sender.failing = false
	require.NoError(t, tx.send())
	require.Equal(t, 0, tx.consecutiveErrors)
}

func TestUniverseTransmitter_ConsecutiveErrorsReflectsHandleSendError(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{failing: true, err: errors.New("boom")}
	tx, _ := newTestTransmitter(t, sender, false)

	require.Equal(t, 0, tx.ConsecutiveErrors())

	for i := 1; i <= 3; i++ {
		err := tx.send()
		require.Error(t, err)
		tx.handleSendError(err)
		require.Equal(t, i, tx.ConsecutiveErrors())
	}

	sender.failing = false
	require.NoError(t, tx.send())
	require.Equal(t, 0, tx.ConsecutiveErrors())
}
