// Package protocol implements the line-oriented command protocol of the
// bridge: parsing host lines into commands, dispatching them to the radio
// controller and writing JSON events back to the host.
package protocol

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"lorabridge/errcode"
	"lorabridge/radio"
)

// Kind classifies a parsed line.
type Kind int

const (
	KindUnknown Kind = iota
	KindHelp
	KindGetConfig
	KindSend
	KindSetConfig
	KindLogging
)

// Operation names inside the "command" object.
const (
	OpHelp      = "help"
	OpGetConfig = "getloraconfig"
	OpSend      = "sendlora"
	OpSetConfig = "setloraconfig"
	OpLogging   = "logging"
)

// ops in match priority order when a command object names several.
var ops = [...]struct {
	name string
	kind Kind
}{
	{OpGetConfig, KindGetConfig},
	{OpHelp, KindHelp},
	{OpSend, KindSend},
	{OpSetConfig, KindSetConfig},
	{OpLogging, KindLogging},
}

// Command is one parsed host request.
type Command struct {
	Kind Kind
	// Name is the operation key, or the first unrecognised key for
	// KindUnknown ("" when the line had no command object).
	Name string

	// Send
	Payload    string
	HasPayload bool

	// SetConfig
	Patch ConfigPatch

	// Logging
	Enabled    bool
	HasEnabled bool
}

// ConfigPatch holds the setloraconfig fields that were present with the
// right type. Nil means "keep the current value".
type ConfigPatch struct {
	BaseFrequencyMHz   *float64
	FrequencyOffsetKHz *float64
	BandwidthKHz       *float64
	SpreadingFactor    *uint8
	CodingRate         *uint8
	SyncWord           *uint8
	OutputPowerDBm     *int8
	PreambleLength     *uint16
}

// Empty reports whether no field is set.
func (p ConfigPatch) Empty() bool { return p == ConfigPatch{} }

// Merge overlays the present fields on base.
func (p ConfigPatch) Merge(base radio.Configuration) radio.Configuration {
	if p.BaseFrequencyMHz != nil {
		base.BaseFrequencyMHz = *p.BaseFrequencyMHz
	}
	if p.FrequencyOffsetKHz != nil {
		base.FrequencyOffsetKHz = *p.FrequencyOffsetKHz
	}
	if p.BandwidthKHz != nil {
		base.BandwidthKHz = *p.BandwidthKHz
	}
	if p.SpreadingFactor != nil {
		base.SpreadingFactor = *p.SpreadingFactor
	}
	if p.CodingRate != nil {
		base.CodingRate = *p.CodingRate
	}
	if p.SyncWord != nil {
		base.SyncWord = *p.SyncWord
	}
	if p.OutputPowerDBm != nil {
		base.OutputPowerDBm = *p.OutputPowerDBm
	}
	if p.PreambleLength != nil {
		base.PreambleLength = *p.PreambleLength
	}
	return base
}

// Parse turns one input line into a Command. Keys are matched without
// regard to case. A line that is not valid JSON returns an invalid_params
// error carrying the decoder message.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if strings.EqualFold(line, OpHelp) {
		return Command{Kind: KindHelp, Name: OpHelp}, nil
	}

	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return Command{}, &errcode.E{C: errcode.InvalidParams, Op: "parse", Msg: "JSON parse error", Err: err}
	}
	if dec.More() {
		return Command{}, &errcode.E{C: errcode.InvalidParams, Op: "parse", Msg: "JSON parse error: trailing data"}
	}

	obj, ok := foldKeys(root).(map[string]any)
	if !ok {
		return Command{}, nil
	}
	cmdObj, ok := obj["command"].(map[string]any)
	if !ok {
		return Command{}, nil
	}

	for _, op := range ops {
		body, present := cmdObj[op.name]
		if !present {
			continue
		}
		c := Command{Kind: op.kind, Name: op.name}
		args, _ := body.(map[string]any)
		switch op.kind {
		case KindSend:
			c.Payload, c.HasPayload = args["payload"].(string)
		case KindSetConfig:
			c.Patch = patchFrom(args)
		case KindLogging:
			c.Enabled, c.HasEnabled = args["enabled"].(bool)
		}
		return c, nil
	}

	keys := make([]string, 0, len(cmdObj))
	for k := range cmdObj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	c := Command{Kind: KindUnknown}
	if len(keys) > 0 {
		c.Name = keys[0]
	}
	return c, nil
}

// foldKeys lowercases object keys at every depth. Values are left alone
// apart from the sync word, which is handled in patchFrom. When keys
// collide after folding, an already lowercase key wins, otherwise the
// first in byte order.
func foldKeys(v any) any {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(x))
		for _, k := range keys {
			if k == strings.ToLower(k) {
				out[k] = foldKeys(x[k])
			}
		}
		for _, k := range keys {
			lk := strings.ToLower(k)
			if _, taken := out[lk]; !taken {
				out[lk] = foldKeys(x[k])
			}
		}
		return out
	case []any:
		for i := range x {
			x[i] = foldKeys(x[i])
		}
		return x
	}
	return v
}

func patchFrom(args map[string]any) ConfigPatch {
	var p ConfigPatch
	if args == nil {
		return p
	}
	p.BaseFrequencyMHz = asFloat(args["freq"])
	p.FrequencyOffsetKHz = asFloat(args["offset"])
	p.BandwidthKHz = asFloat(args["bw"])
	if v, ok := asInt(args["sf"], 0, math.MaxUint8); ok {
		u := uint8(v)
		p.SpreadingFactor = &u
	}
	if v, ok := asInt(args["cr"], 0, math.MaxUint8); ok {
		u := uint8(v)
		p.CodingRate = &u
	}
	p.SyncWord = asSync(args["sync"])
	if v, ok := asInt(args["power"], math.MinInt8, math.MaxInt8); ok {
		i := int8(v)
		p.OutputPowerDBm = &i
	}
	if v, ok := asInt(args["preamble"], 0, math.MaxUint16); ok {
		u := uint16(v)
		p.PreambleLength = &u
	}
	return p
}

func asFloat(v any) *float64 {
	n, ok := v.(json.Number)
	if !ok {
		return nil
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

func asInt(v any, lo, hi int64) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil || i < lo || i > hi {
		return 0, false
	}
	return i, true
}

// asSync accepts a number or a string in any base strconv detects
// ("0x12", "18", "0o22").
func asSync(v any) *uint8 {
	switch x := v.(type) {
	case string:
		u, err := strconv.ParseUint(strings.ToLower(strings.TrimSpace(x)), 0, 8)
		if err != nil {
			return nil
		}
		b := uint8(u)
		return &b
	case json.Number:
		i, ok := asInt(x, 0, math.MaxUint8)
		if !ok {
			return nil
		}
		b := uint8(i)
		return &b
	}
	return nil
}
