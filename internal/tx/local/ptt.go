package local

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// PTT keys a physical transmitter.
type PTT interface {
	SetState(on bool) error
	Close() error
}

// dummyPTT only logs.
type dummyPTT struct {
	name string
}

func (p *dummyPTT) SetState(on bool) error {
	logrus.WithFields(logrus.Fields{
		"transmitter": p.name,
		"ptt":         on,
	}).Debug("PTT state change")
	return nil
}

func (p *dummyPTT) Close() error { return nil }

// gpioPTT drives a sysfs GPIO value file, e.g. /sys/class/gpio/gpio17/value.
type gpioPTT struct {
	path     string
	inverted bool
}

func (p *gpioPTT) SetState(on bool) error {
	level := on != p.inverted
	value := []byte("0")
	if level {
		value = []byte("1")
	}
	if err := os.WriteFile(p.path, value, 0); err != nil {
		return fmt.Errorf("failed to set PTT %s: %w", p.path, err)
	}
	return nil
}

func (p *gpioPTT) Close() error {
	return p.SetState(false)
}

// newPTT creates the PTT selected by pttType.
func newPTT(name, pttType, pin string, inverted bool) (PTT, error) {
	switch strings.ToLower(pttType) {
	case "", "dummy", "none":
		return &dummyPTT{name: name}, nil
	case "gpio":
		if pin == "" {
			return nil, fmt.Errorf("PTT_TYPE GPIO requires PTT_PIN")
		}
		if _, err := os.Stat(pin); err != nil {
			return nil, fmt.Errorf("PTT pin %s: %w", pin, err)
		}
		return &gpioPTT{path: pin, inverted: inverted}, nil
	default:
		return nil, fmt.Errorf("unknown PTT_TYPE %q", pttType)
	}
}
