package tx

// Base provides naming and event delivery for transmitter implementations.
type Base struct {
	// TxName is the configuration section name of the transmitter.
	TxName string

	handlers []Handlers
}

// Name returns the transmitter name.
func (b *Base) Name() string {
	return b.TxName
}

// Subscribe appends an event handler table. Tables receive events in the
// order they were subscribed.
func (b *Base) Subscribe(h Handlers) {
	b.handlers = append(b.handlers, h)
}

// ClearHandlers drops every subscribed handler table.
func (b *Base) ClearHandlers() {
	b.handlers = nil
}

// EmitTxTimeout delivers a timeout event.
func (b *Base) EmitTxTimeout() {
	for _, h := range b.snapshot() {
		if h.TxTimeout != nil {
			h.TxTimeout()
		}
	}
}

// EmitTransmitterStateChange delivers a transmit state change.
func (b *Base) EmitTransmitterStateChange(isTransmitting bool) {
	for _, h := range b.snapshot() {
		if h.TransmitterStateChange != nil {
			h.TransmitterStateChange(isTransmitting)
		}
	}
}

// EmitLatencyChanged delivers a latency report on behalf of src.
func (b *Base) EmitLatencyChanged(latencyMs int, src Transmitter) {
	for _, h := range b.snapshot() {
		if h.LatencyChanged != nil {
			h.LatencyChanged(latencyMs, src)
		}
	}
}

// snapshot copies the handler list so that handlers subscribing from inside
// a delivery do not disturb the iteration.
func (b *Base) snapshot() []Handlers {
	if len(b.handlers) == 0 {
		return nil
	}
	out := make([]Handlers, len(b.handlers))
	copy(out, b.handlers)
	return out
}
