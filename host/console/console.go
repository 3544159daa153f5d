// Package console turns operator shorthand into bridge command lines and
// renders bridge events for a terminal.
package console

import (
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/shlex"

	"lorabridge/codec"
	"lorabridge/errcode"
	"lorabridge/services/config"
	"lorabridge/types"
)

// Usage lists the shorthand verbs.
const Usage = `help                      list bridge commands
get                       show the radio configuration
send <text>               transmit text (quote to keep spaces)
sendb64 <base64>          transmit raw bytes
sendhex <hex>             transmit raw bytes
set key=value ...         freq offset bw sf cr sync power preamble
preset <name>             apply a named preset (` + "%s" + `)
logging on|off            toggle bridge diagnostics
{...}                     send a JSON line as is`

// Help returns Usage with the preset names filled in.
func Help() string {
	return strings.Replace(Usage, "%s", strings.Join(config.PresetNames(), ", "), 1)
}

type params map[string]any

func command(op string, args params) string {
	if args == nil {
		args = params{}
	}
	b, _ := json.Marshal(map[string]any{"command": map[string]any{op: args}})
	return string(b)
}

func inputErr(msg string) error {
	return &errcode.E{C: errcode.InvalidParams, Op: "console", Msg: msg}
}

// Translate converts one operator line into a bridge command line. An
// empty result with a nil error means there is nothing to send.
func Translate(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}
	if strings.HasPrefix(input, "{") {
		return input, nil
	}
	words, err := shlex.Split(input)
	if err != nil {
		return "", inputErr(err.Error())
	}
	if len(words) == 0 {
		return "", nil
	}

	verb, args := strings.ToLower(words[0]), words[1:]
	switch verb {
	case "help":
		return command("help", nil), nil
	case "get", "config":
		return command("getloraconfig", nil), nil
	case "send":
		if len(args) == 0 {
			return "", inputErr("send needs text")
		}
		return send([]byte(strings.Join(args, " ")))
	case "sendb64":
		if len(args) != 1 {
			return "", inputErr("sendb64 needs one base64 argument")
		}
		if _, err := codec.Decode(args[0]); err != nil {
			return "", err
		}
		return command("sendlora", params{"payload": args[0]}), nil
	case "sendhex":
		if len(args) == 0 {
			return "", inputErr("sendhex needs hex bytes")
		}
		b, err := hex.DecodeString(strings.Join(args, ""))
		if err != nil {
			return "", inputErr("bad hex: " + err.Error())
		}
		return send(b)
	case "set":
		return set(args)
	case "preset":
		if len(args) != 1 {
			return "", inputErr("preset needs a name")
		}
		c, err := config.Preset(args[0])
		if err != nil {
			return "", err
		}
		b, _ := json.Marshal(c)
		var p params
		_ = json.Unmarshal(b, &p)
		return command("setloraconfig", p), nil
	case "logging", "log":
		if len(args) != 1 {
			return "", inputErr("logging needs on or off")
		}
		switch strings.ToLower(args[0]) {
		case "on", "true", "1":
			return command("logging", params{"enabled": true}), nil
		case "off", "false", "0":
			return command("logging", params{"enabled": false}), nil
		}
		return "", inputErr("logging needs on or off")
	}
	return "", inputErr("unknown verb " + strconv.Quote(verb))
}

func send(b []byte) (string, error) {
	if len(b) == 0 {
		return "", inputErr("payload is empty")
	}
	return command("sendlora", params{"payload": codec.Encode(b)}), nil
}

var floatKeys = map[string]bool{"freq": true, "offset": true, "bw": true}
var intKeys = map[string]bool{"sf": true, "cr": true, "power": true, "preamble": true}

func set(args []string) (string, error) {
	if len(args) == 0 {
		return "", inputErr("set needs key=value pairs")
	}
	p := params{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if !ok || k == "" || v == "" {
			return "", inputErr("expected key=value, got " + strconv.Quote(a))
		}
		switch {
		case floatKeys[k]:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return "", inputErr(k + " must be a number")
			}
			p[k] = f
		case intKeys[k]:
			i, err := strconv.ParseInt(v, 10, 32)
			if err != nil {
				return "", inputErr(k + " must be an integer")
			}
			p[k] = i
		case k == "sync":
			if _, err := strconv.ParseUint(strings.ToLower(v), 0, 8); err != nil {
				return "", inputErr("sync must be a byte such as 0x12")
			}
			p[k] = v
		default:
			return "", inputErr("unknown setting " + strconv.Quote(k))
		}
	}
	return command("setloraconfig", p), nil
}

// Format renders one bridge output line. Lines that are not events are
// returned unchanged.
func Format(line string) string {
	var ev types.Event
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		return line
	}
	switch ev.Type {
	case types.EventLog:
		return "[" + string(ev.Level) + "] " + ev.Message
	case types.EventLoRaRx:
		var b strings.Builder
		b.WriteString("RX rssi=")
		b.WriteString(strconv.Itoa(ev.RSSI))
		b.WriteString(" dBm snr=")
		b.WriteString(strconv.FormatFloat(ev.SNR, 'f', 2, 64))
		b.WriteString(" dB ferr=")
		b.WriteString(strconv.FormatFloat(ev.FrequencyError, 'f', 2, 64))
		b.WriteString(" kHz ")
		data, err := codec.Decode(ev.Payload)
		if err != nil {
			b.WriteString("payload=")
			b.WriteString(strconv.Quote(ev.Payload))
			b.WriteString(" (undecodable)")
			return b.String()
		}
		b.WriteString("len=")
		b.WriteString(strconv.Itoa(len(data)))
		b.WriteString(": ")
		b.WriteString(Printable(data))
		return b.String()
	}
	return line
}

// Printable quotes data as text when every byte is printable ASCII and
// falls back to hex otherwise.
func Printable(data []byte) string {
	for _, c := range data {
		if c > unicode.MaxASCII || !unicode.IsPrint(rune(c)) {
			return hex.EncodeToString(data)
		}
	}
	return strconv.Quote(string(data))
}
