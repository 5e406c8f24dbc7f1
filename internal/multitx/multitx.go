package multitx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/radio-control/txagg/internal/audio"
	"github.com/radio-control/txagg/internal/tx"
)

// TypeName is the TYPE value selecting an aggregate.
const TypeName = "Multi"

// DefaultSimulcastLatency is the latency floor, in milliseconds, applied
// when SIMULCAST is set without SIMULCAST_LATENCY.
const DefaultSimulcastLatency = 10

// ErrNoTransmitters is returned when an aggregate has nothing to aggregate.
var ErrNoTransmitters = errors.New("NO_TRANSMITTERS")

// Option configures a MultiTx.
type Option func(*MultiTx)

// WithObserver sets the lifecycle observer. The default logs via logrus.
func WithObserver(o Observer) Option {
	return func(m *MultiTx) {
		if o != nil {
			m.observer = o
		}
	}
}

// MultiTx presents an ordered set of transmitters as a single transmitter.
//
// Audio is duplicated to every member through a splitter. Control calls are
// broadcast to every member in order. The aggregate keys whenever any member
// does, and keeps one system latency across all members: raised at once
// when a member needs more, lowered only at an aggregate transmit-state
// transition.
//
// All methods and member events must be delivered on one goroutine.
type MultiTx struct {
	tx.Base

	cfg      tx.Config
	factory  tx.Factory
	observer Observer
	splitter *audio.Splitter

	members   []tx.Transmitter
	consensus latencyConsensus
	simulcast bool

	// pushGen identifies the latest latency push. A push started from
	// inside another push supersedes it.
	pushGen uint64

	// lastEdge is the last transmit state emitted upward.
	lastEdge    bool
	initialized bool
}

// Compile-time assertion that MultiTx implements tx.Transmitter
var _ tx.Transmitter = (*MultiTx)(nil)

// New creates an aggregate for section name. Members are resolved through
// factory when Initialize is called.
func New(cfg tx.Config, name string, factory tx.Factory, opts ...Option) *MultiTx {
	m := &MultiTx{
		Base:     tx.Base{TxName: name},
		cfg:      cfg,
		factory:  factory,
		observer: NewLogObserver(nil),
		splitter: audio.NewSplitter(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewConstructor returns a registry constructor for aggregates whose
// members are resolved through factory. Passing the registry itself allows
// aggregates of aggregates. A nested aggregate never reports latency to its
// owner: it reconciles its own members and passes an enclosing
// SetSystemLatency through until its next transmit edge.
func NewConstructor(factory tx.Factory, opts ...Option) tx.Constructor {
	return func(cfg tx.Config, name string) (tx.Transmitter, error) {
		return New(cfg, name, factory, opts...), nil
	}
}

// ParseTransmitterList splits a comma separated list of section names.
// Empty tokens are skipped.
func ParseTransmitterList(list string) []string {
	names := []string{}
	for _, tok := range strings.Split(list, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			names = append(names, tok)
		}
	}
	return names
}

// Initialize creates and initializes every member listed in TRANSMITTERS.
// It is all or nothing: when any member fails, every member created so far
// is closed and the aggregate is left empty.
func (m *MultiTx) Initialize() error {
	if m.initialized {
		return fmt.Errorf("%w: %s already initialized", tx.ErrInitFailed, m.Name())
	}

	list, ok := m.cfg.Value(m.Name(), "TRANSMITTERS")
	if !ok {
		return tx.NewInitError(m.Name(), fmt.Errorf("%w: TRANSMITTERS not set", ErrNoTransmitters))
	}
	names := ParseTransmitterList(list)
	if len(names) == 0 {
		return tx.NewInitError(m.Name(), fmt.Errorf("%w: TRANSMITTERS is empty", ErrNoTransmitters))
	}

	floor, err := m.simulcastFloor()
	if err != nil {
		return tx.NewInitError(m.Name(), err)
	}

	built := make([]tx.Transmitter, 0, len(names))
	for _, name := range names {
		t, err := m.factory.Create(name)
		if err != nil {
			m.release(built)
			return tx.NewInitError(name, err)
		}
		built = append(built, t)
		if err := t.Initialize(); err != nil {
			m.release(built)
			return tx.NewInitError(name, err)
		}
	}

	for _, t := range built {
		m.attach(t)
	}
	m.initialized = true

	m.observer.Initialized(m.Name(), names, m.simulcast)

	if m.simulcast && m.consensus.setFloor(floor) {
		m.observer.LatencyApplied(m.Name(), floor, "")
		m.pushLatency()
	}
	return nil
}

func (m *MultiTx) simulcastFloor() (int, error) {
	if _, ok := m.cfg.Value(m.Name(), "SIMULCAST"); !ok {
		return 0, nil
	}
	m.simulcast = true

	v, ok := m.cfg.Value(m.Name(), "SIMULCAST_LATENCY")
	if !ok {
		return DefaultSimulcastLatency, nil
	}
	ms, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%w: SIMULCAST_LATENCY %q", tx.ErrInvalidParameter, v)
	}
	return ms, nil
}

// attach subscribes to t and wires it into the audio path.
func (m *MultiTx) attach(t tx.Transmitter) {
	t.Subscribe(tx.Handlers{
		TxTimeout: func() {
			m.EmitTxTimeout()
		},
		TransmitterStateChange: func(isTransmitting bool) {
			m.onTransmitterStateChange(isTransmitting)
		},
		LatencyChanged: func(latencyMs int, _ tx.Transmitter) {
			m.onLatencyChanged(t, latencyMs)
		},
	})
	m.splitter.AddSink(t)
	m.members = append(m.members, t)
}

// release closes transmitters that were created but never attached, newest
// first.
func (m *MultiTx) release(built []tx.Transmitter) {
	for i := len(built) - 1; i >= 0; i-- {
		if err := built[i].Close(); err != nil {
			m.observer.ReleaseFailed(m.Name(), built[i].Name(), err)
		}
	}
}

func (m *MultiTx) SetCtrlMode(mode tx.CtrlMode) {
	for _, t := range m.members {
		t.SetCtrlMode(mode)
	}
}

func (m *MultiTx) EnableCtcss(enable bool) {
	for _, t := range m.members {
		t.EnableCtcss(enable)
	}
}

func (m *MultiTx) SendDtmf(digits string) {
	for _, t := range m.members {
		t.SendDtmf(digits)
	}
}

func (m *MultiTx) SetTransmittedSignalStrength(level float32) {
	for _, t := range m.members {
		t.SetTransmittedSignalStrength(level)
	}
}

// SetSystemLatency forwards a latency enforced by an enclosing aggregate to
// every member. It does not touch this aggregate's own consensus, which is
// pushed again at the next transmit edge.
func (m *MultiTx) SetSystemLatency(latencyMs int) {
	for _, t := range m.members {
		t.SetSystemLatency(latencyMs)
	}
}

// IsTransmitting reports whether any member is transmitting.
func (m *MultiTx) IsTransmitting() bool {
	for _, t := range m.members {
		if t.IsTransmitting() {
			return true
		}
	}
	return false
}

// WriteSamples offers samples to every member and returns how many all of
// them accepted.
func (m *MultiTx) WriteSamples(samples []float32) int {
	return m.splitter.WriteSamples(samples)
}

func (m *MultiTx) FlushSamples() {
	m.splitter.FlushSamples()
}

// Close releases every member, newest first.
func (m *MultiTx) Close() error {
	var errs []error
	for i := len(m.members) - 1; i >= 0; i-- {
		t := m.members[i]
		m.splitter.RemoveSink(t)
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
		}
	}
	m.members = nil
	m.ClearHandlers()
	return errors.Join(errs...)
}

func (m *MultiTx) onTransmitterStateChange(isTransmitting bool) {
	if m.IsTransmitting() == isTransmitting && isTransmitting != m.lastEdge {
		m.lastEdge = isTransmitting
		m.observer.EdgeEmitted(m.Name(), isTransmitting)
		m.EmitTransmitterStateChange(isTransmitting)
	}

	from := m.consensus.system
	if m.consensus.commit() {
		m.observer.LatencyCommitted(m.Name(), from, m.consensus.system)
	}
	m.pushLatency()
}

func (m *MultiTx) onLatencyChanged(src tx.Transmitter, latencyMs int) {
	switch m.consensus.report(src, latencyMs) {
	case latencyApplied:
		m.observer.LatencyApplied(m.Name(), m.consensus.system, src.Name())
		m.pushLatency()
	case latencyStaged:
		m.observer.LatencyStaged(m.Name(), m.consensus.next, m.consensus.system)
	}
}

// pushLatency sends the system latency to every member. Members may report
// back from inside SetSystemLatency; if that starts a newer push, this one
// stops.
func (m *MultiTx) pushLatency() {
	m.pushGen++
	gen := m.pushGen
	latency := m.consensus.system
	for _, t := range m.members {
		if m.pushGen != gen {
			return
		}
		t.SetSystemLatency(latency)
	}
}

// SystemLatency returns the latency currently enforced, in milliseconds.
func (m *MultiTx) SystemLatency() int { return m.consensus.system }

// NextLatency returns the staged latency. It equals SystemLatency unless a
// reduction is pending.
func (m *MultiTx) NextLatency() int { return m.consensus.next }

// LatencyPending reports whether a reduction waits for the next transmit
// state transition.
func (m *MultiTx) LatencyPending() bool { return m.consensus.pending() }

// MaxHolder returns the member that last set or holds the maximum latency,
// or nil.
func (m *MultiTx) MaxHolder() tx.Transmitter { return m.consensus.holder }

// Member returns the first member named name, or nil.
func (m *MultiTx) Member(name string) tx.Transmitter {
	for _, t := range m.members {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// Members returns the member names in order.
func (m *MultiTx) Members() []string {
	names := make([]string, len(m.members))
	for i, t := range m.members {
		names[i] = t.Name()
	}
	return names
}

// MemberStatus is a snapshot of one member.
type MemberStatus struct {
	Name         string `json:"name"`
	Transmitting bool   `json:"transmitting"`
	LatencyMs    int    `json:"latencyMs"`
	Reported     bool   `json:"reported"`
	Holder       bool   `json:"holder"`
}

// Status is a snapshot of the aggregate.
type Status struct {
	Name            string         `json:"name"`
	Transmitting    bool           `json:"transmitting"`
	SystemLatencyMs int            `json:"systemLatencyMs"`
	NextLatencyMs   int            `json:"nextLatencyMs"`
	LatencyState    string         `json:"latencyState"`
	Simulcast       bool           `json:"simulcast"`
	FloorMs         int            `json:"floorMs"`
	Members         []MemberStatus `json:"members"`
}

// Status returns a snapshot of the aggregate and its members.
func (m *MultiTx) Status() Status {
	s := Status{
		Name:            m.Name(),
		Transmitting:    m.IsTransmitting(),
		SystemLatencyMs: m.consensus.system,
		NextLatencyMs:   m.consensus.next,
		LatencyState:    m.consensus.state.String(),
		Simulcast:       m.simulcast,
		FloorMs:         m.consensus.floor,
		Members:         make([]MemberStatus, 0, len(m.members)),
	}
	for _, t := range m.members {
		ms, reported := m.consensus.latencyOf(t)
		s.Members = append(s.Members, MemberStatus{
			Name:         t.Name(),
			Transmitting: t.IsTransmitting(),
			LatencyMs:    ms,
			Reported:     reported,
			Holder:       t == m.consensus.holder,
		})
	}
	return s
}
