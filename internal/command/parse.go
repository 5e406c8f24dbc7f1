package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/radio-control/txagg/internal/audio"
	"github.com/radio-control/txagg/internal/tx"
)

// Usage lists the operator commands understood by Execute.
const Usage = `mode off|on|auto        set the control mode of every transmitter
ctcss on|off            switch the CTCSS tone
dtmf <digits>           send DTMF digits
strength <level>        set the transmitted signal strength
latency <member> <ms>   change the own latency of a member
audio <ms>              send ms of silence and flush
status                  print the aggregate status
help                    print this text`

// Command is a parsed operator command line.
type Command struct {
	Name string
	Args []string
}

var arity = map[string]int{
	"mode":     1,
	"ctcss":    1,
	"dtmf":     1,
	"strength": 1,
	"latency":  2,
	"audio":    1,
	"status":   0,
	"help":     0,
}

// ParseCommand splits line into a command name and its arguments and checks
// the argument count.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", ErrInvalidParameter)
	}
	cmd := Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}
	want, ok := arity[cmd.Name]
	if !ok {
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrInvalidParameter, cmd.Name)
	}
	if len(cmd.Args) != want {
		return Command{}, fmt.Errorf("%w: %s takes %d argument(s), got %d", ErrInvalidParameter, cmd.Name, want, len(cmd.Args))
	}
	return cmd, nil
}

// Execute parses and runs one operator command line and returns the text to
// show the operator.
func (o *Orchestrator) Execute(ctx context.Context, line string) (string, error) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return "", err
	}

	switch cmd.Name {
	case "mode":
		mode, err := tx.ParseCtrlMode(cmd.Args[0])
		if err != nil {
			return "", err
		}
		return reply("ok", o.SetCtrlMode(ctx, mode))

	case "ctcss":
		enable, err := parseOnOff(cmd.Args[0])
		if err != nil {
			return "", err
		}
		return reply("ok", o.EnableCtcss(ctx, enable))

	case "dtmf":
		return reply("ok", o.SendDtmf(ctx, cmd.Args[0]))

	case "strength":
		level, err := strconv.ParseFloat(cmd.Args[0], 32)
		if err != nil {
			return "", fmt.Errorf("%w: signal strength %q", ErrInvalidParameter, cmd.Args[0])
		}
		return reply("ok", o.SetSignalStrength(ctx, float32(level)))

	case "latency":
		ms, err := strconv.Atoi(cmd.Args[1])
		if err != nil {
			return "", fmt.Errorf("%w: latency %q", ErrInvalidParameter, cmd.Args[1])
		}
		return reply("ok", o.SetLatency(ctx, cmd.Args[0], ms))

	case "audio":
		ms, err := strconv.Atoi(cmd.Args[0])
		if err != nil || ms <= 0 {
			return "", fmt.Errorf("%w: audio length %q", ErrInvalidParameter, cmd.Args[0])
		}
		if err := o.WriteAudio(make([]float32, audio.SamplesFor(time.Duration(ms)*time.Millisecond))); err != nil {
			return "", err
		}
		return reply("queued", o.FlushAudio())

	case "status":
		st, err := o.Status(ctx)
		if err != nil {
			return "", err
		}
		out, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode status: %w", err)
		}
		return string(out), nil
	}

	return Usage, nil
}

func reply(text string, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return text, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("%w: expected on or off, got %q", ErrInvalidParameter, s)
}
