// Package dummy provides a transmitter that accepts every command and all
// audio but never keys up. It stands in for transmitters that are
// configured but not physically present.
package dummy

import (
	"github.com/sirupsen/logrus"

	"github.com/radio-control/txagg/internal/tx"
)

// TypeName is the TYPE value selecting this backend.
const TypeName = "Dummy"

// Tx is a transmitter that does nothing.
type Tx struct {
	tx.Base
}

// Compile-time assertion that Tx implements tx.Transmitter
var _ tx.Transmitter = (*Tx)(nil)

// New creates a dummy transmitter.
func New(name string) *Tx {
	return &Tx{Base: tx.Base{TxName: name}}
}

// Constructor is the registry constructor for dummy transmitters.
func Constructor(_ tx.Config, name string) (tx.Transmitter, error) {
	return New(name), nil
}

func (d *Tx) Initialize() error {
	logrus.WithField("transmitter", d.Name()).Debug("Dummy transmitter initialized")
	return nil
}

func (d *Tx) SetCtrlMode(tx.CtrlMode)              {}
func (d *Tx) EnableCtcss(bool)                     {}
func (d *Tx) SendDtmf(string)                      {}
func (d *Tx) SetTransmittedSignalStrength(float32) {}
func (d *Tx) IsTransmitting() bool                 { return false }
func (d *Tx) SetSystemLatency(int)                 {}
func (d *Tx) WriteSamples(samples []float32) int   { return len(samples) }
func (d *Tx) FlushSamples()                        {}

func (d *Tx) Close() error {
	d.ClearHandlers()
	return nil
}
