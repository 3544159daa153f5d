package protocol

import (
	"strconv"

	"lorabridge/codec"
	"lorabridge/radio"
	"lorabridge/types"
)

// Radio is the controller surface used by the dispatcher.
type Radio interface {
	Config() radio.Configuration
	Apply(cfg radio.Configuration) error
	Transmit(payload []byte) error
}

// Handler serves one operation.
type Handler func(d *Dispatcher, cmd Command)

// Dispatcher routes parsed commands to handlers registered by operation
// name. It runs on the control loop only.
type Dispatcher struct {
	radio    Radio
	out      *EventWriter
	handlers map[string]Handler
}

// NewDispatcher returns a dispatcher with the standard operations.
func NewDispatcher(r Radio, out *EventWriter) *Dispatcher {
	d := &Dispatcher{radio: r, out: out, handlers: make(map[string]Handler)}
	d.Register(OpHelp, handleHelp)
	d.Register(OpGetConfig, handleGetConfig)
	d.Register(OpSend, handleSend)
	d.Register(OpSetConfig, handleSetConfig)
	d.Register(OpLogging, handleLogging)
	return d
}

// Register adds or replaces the handler for name.
func (d *Dispatcher) Register(name string, h Handler) { d.handlers[name] = h }

// Events returns the writer responses go to.
func (d *Dispatcher) Events() *EventWriter { return d.out }

// HandleLine parses and executes one host line.
func (d *Dispatcher) HandleLine(line string) {
	cmd, err := Parse(line)
	if err != nil {
		d.out.Respond(types.LevelError, err.Error())
		return
	}
	d.Dispatch(cmd)
}

// Dispatch executes a parsed command.
func (d *Dispatcher) Dispatch(cmd Command) {
	if cmd.Kind == KindUnknown {
		if cmd.Name == "" {
			d.out.Respond(types.LevelWarn, "Unknown command: missing command object")
		} else {
			d.out.Respond(types.LevelWarn, "Unknown command type: "+cmd.Name)
		}
		return
	}
	h, ok := d.handlers[cmd.Name]
	if !ok {
		d.out.Respond(types.LevelWarn, "Unknown command type: "+cmd.Name)
		return
	}
	h(d, cmd)
}

func handleHelp(d *Dispatcher, _ Command) {
	d.out.Respond(types.LevelInfo, helpText)
}

func handleGetConfig(d *Dispatcher, _ Command) {
	d.out.Respond(types.LevelInfo, DescribeConfig(d.radio.Config()))
}

func handleSend(d *Dispatcher, cmd Command) {
	if !cmd.HasPayload {
		d.out.Respond(types.LevelError, "sendlora: payload must be a base64 string")
		return
	}
	data, err := codec.Decode(cmd.Payload)
	if err != nil {
		d.out.Respond(types.LevelError, "sendlora: "+err.Error())
		return
	}
	if len(data) == 0 {
		d.out.Respond(types.LevelError, "sendlora: payload is empty")
		return
	}
	if err := d.radio.Transmit(data); err != nil {
		d.out.Respond(types.LevelError, "sendlora: "+err.Error())
		return
	}
	d.out.Respond(types.LevelInfo, "LoRa payload sent ("+strconv.Itoa(len(data))+" bytes)")
}

func handleSetConfig(d *Dispatcher, cmd Command) {
	cfg := cmd.Patch.Merge(d.radio.Config())
	if err := cfg.Validate(); err != nil {
		d.out.Respond(types.LevelError, "setloraconfig: "+err.Error())
		return
	}
	if err := d.radio.Apply(cfg); err != nil {
		d.out.Respond(types.LevelError, "setloraconfig: "+err.Error())
		return
	}
	d.out.Respond(types.LevelInfo, "LoRa config applied. "+DescribeConfig(d.radio.Config()))
}

func handleLogging(d *Dispatcher, cmd Command) {
	if !cmd.HasEnabled {
		d.out.Respond(types.LevelError, "logging: enabled must be true or false")
		return
	}
	if cmd.Enabled == d.out.Logging() {
		d.out.Respond(types.LevelStatus, "Logging unchanged")
		return
	}
	d.out.SetLogging(cmd.Enabled)
}
