package dmx

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/robmorgan/halofx/logging"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

// MinSendInterval is the shortest gap the transmitter leaves between sends:
// it never transmits more often than this (>= 25ms, i.e. <= 40Hz).
const MinSendInterval = 25 * time.Millisecond

// RefreshInterval is how often a frame is forced out when NeedsRefresh is
// set, regardless of dirty state.
const RefreshInterval = 1000 * time.Millisecond

// MaxConsecutiveSendErrors is the number of back-to-back send failures after
// which the transmitter gives up and terminates.
const MaxConsecutiveSendErrors = 20

// Listener receives the set of channels that changed on the most recent
// send. Listener callbacks must not block.
type Listener func(changes map[int]byte)

// packetSender abstracts the UDP socket so transmission can be tested
// without binding real sockets.
type packetSender interface {
	Send(packet []byte) error
	Close() error
}

type udpSender struct {
	conn *net.UDPConn
}

func (s *udpSender) Send(packet []byte) error {
	_, err := s.conn.Write(packet)
	return err
}

func (s *udpSender) Close() error {
	return s.conn.Close()
}

// UniverseTransmitter owns one universe's ChannelFadeEngine and drives
// throttled Art-Net UDP output for it.
type UniverseTransmitter struct {
	universe     Universe
	fades        *ChannelFadeEngine
	sender       packetSender
	needsRefresh bool
	clk          clock.Clock
	log          *logrus.Entry

	mu        sync.Mutex
	listeners []Listener

	wake chan struct{}

	sequence          byte
	consecutiveErrors int
	terminal          bool
	terminalErr       error
	lastSend          time.Time
}

// NewUniverseTransmitter dials a UDP destination (broadcast or unicast
// address, e.g. "255.255.255.255:6454") and returns a transmitter ready to
// Run. needsRefresh forces a full send every RefreshInterval even when no
// channel has changed, for hardware that forgets stale state.
func NewUniverseTransmitter(universe Universe, destAddr string, needsRefresh bool, clk clock.Clock) (*UniverseTransmitter, error) {
	addr, err := net.ResolveUDPAddr("udp4", destAddr)
	if err != nil {
		return nil, fmt.Errorf("dmx: resolve %q: %w", destAddr, err)
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dmx: dial %q: %w", destAddr, err)
	}
	return newUniverseTransmitter(universe, &udpSender{conn: conn}, needsRefresh, clk), nil
}

func newUniverseTransmitter(universe Universe, sender packetSender, needsRefresh bool, clk clock.Clock) *UniverseTransmitter {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &UniverseTransmitter{
		universe:     universe,
		fades:        NewChannelFadeEngine(clk.Now()),
		sender:       sender,
		needsRefresh: needsRefresh,
		clk:          clk,
		log:          logging.GetProjectLogger().WithField("universe", universe.String()),
		wake:         make(chan struct{}, 1),
		lastSend:     clk.Now().Add(-RefreshInterval),
	}
}

// Fades returns the transmitter's channel fade engine, for use by a
// ControllerTransaction.
func (t *UniverseTransmitter) Fades() *ChannelFadeEngine {
	return t.fades
}

// Snapshot returns the current materialized 512-byte frame.
func (t *UniverseTransmitter) Snapshot() [ChannelCount]byte {
	return t.fades.Snapshot()
}

// AddListener registers a non-blocking channel-change listener.
func (t *UniverseTransmitter) AddListener(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// RequestTransmit signals that a send is wanted. It is safe to call from any
// goroutine and never blocks; repeated calls before the transmitter wakes
// are conflated into a single send.
func (t *UniverseTransmitter) RequestTransmit() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Terminal reports whether the transmitter has shut down after exceeding
// MaxConsecutiveSendErrors, and the error that caused it.
func (t *UniverseTransmitter) Terminal() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.terminal, t.terminalErr
}

// Run drives the transmit loop until ctx is cancelled or the transmitter
// terminates after too many consecutive send errors. It does not restart
// itself; the caller must construct a new transmitter to recover.
func (t *UniverseTransmitter) Run(ctx context.Context) error {
	defer t.sender.Close()

	throttle := t.clk.NewTimer(MinSendInterval)
	defer throttle.Stop()

	pending := true // always send an initial frame
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.wake:
			pending = true
		case <-throttle.C():
			refreshDue := t.needsRefresh && t.clk.Since(t.lastSend) >= RefreshInterval
			if pending || refreshDue {
				if err := t.send(); err != nil {
					if t.handleSendError(err) {
						return t.terminalErr
					}
				}
				pending = false
			}
			throttle.Reset(MinSendInterval)
		}
	}
}

func (t *UniverseTransmitter) send() error {
	now := t.clk.Now()
	t.fades.Tick(now)

	frame := t.fades.Snapshot()
	packet := buildArtDMXPacket(wireUniverseIndex(t.universe), frame, t.sequence)
	t.sequence++

	if err := t.sender.Send(packet); err != nil {
		return err
	}

	t.lastSend = now
	t.mu.Lock()
	t.consecutiveErrors = 0
	t.mu.Unlock()

	if changes := t.fades.DrainDirty(); changes != nil {
		t.fanOut(changes)
	}
	return nil
}

// handleSendError applies the transmitter's error policy: log the first
// failure, suppress the rest, and give up after MaxConsecutiveSendErrors.
// It returns true once the transmitter has gone terminal.
func (t *UniverseTransmitter) handleSendError(err error) bool {
	t.mu.Lock()
	t.consecutiveErrors++
	count := t.consecutiveErrors
	t.mu.Unlock()

	if count == 1 {
		t.log.WithError(err).Error("dmx send failed")
	}
	if count >= MaxConsecutiveSendErrors {
		t.mu.Lock()
		t.terminal = true
		t.terminalErr = fmt.Errorf("dmx: transmitter for universe %s terminated after %d consecutive send errors: %w", t.universe, count, err)
		t.mu.Unlock()
		t.log.WithError(err).Error("dmx transmitter shutting down: too many consecutive send errors")
		return true
	}
	return false
}

// ConsecutiveErrors returns the current run of back-to-back send failures,
// for observability (api.Server.SampleMetrics reads this across every
// transmitter). It resets to 0 on the next successful send.
func (t *UniverseTransmitter) ConsecutiveErrors() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consecutiveErrors
}

func (t *UniverseTransmitter) fanOut(changes map[int]byte) {
	t.mu.Lock()
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	for _, l := range listeners {
		l(changes)
	}
}
