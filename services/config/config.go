// Package config resolves the embedded per-board configuration and the
// named radio presets.
package config

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"lorabridge/radio"
	"lorabridge/services/bridge"
	"lorabridge/types"
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

// Board is the decoded configuration of one board.
type Board struct {
	Name      string          `json:"-"`
	Logging   bool            `json:"logging"`
	Serial    SerialConfig    `json:"serial"`
	Indicator IndicatorConfig `json:"indicator"`
	Radio     RadioConfig     `json:"radio"`
}

type SerialConfig struct {
	UART int `json:"uart"`
	TX   int `json:"tx"`
	RX   int `json:"rx"`
	types.SerialFormat
	bridge.Config
}

type IndicatorConfig struct {
	Pin       int  `json:"pin"` // -1 disables the light
	ActiveLow bool `json:"active_low,omitempty"`
}

type SPIConfig struct {
	Bus int    `json:"bus"`
	SCK int    `json:"sck"`
	SDO int    `json:"sdo"`
	SDI int    `json:"sdi"`
	Hz  uint32 `json:"hz"`
}

type RadioConfig struct {
	Preset       string    `json:"preset"`
	SPI          SPIConfig `json:"spi"`
	NSS          int       `json:"nss"`
	Reset        int       `json:"reset"`
	Busy         int       `json:"busy"`
	DIO1         int       `json:"dio1"`
	RxEnable     int       `json:"rx_enable"`
	TxEnable     int       `json:"tx_enable"`
	DIO2RfSwitch bool      `json:"dio2_rf_switch,omitempty"`
	TCXOVoltage  float32   `json:"tcxo_voltage"`
}

// Load resolves and decodes the configuration of board.
func Load(board string) (Board, error) {
	raw, ok := EmbeddedConfigLookup(board)
	if !ok || len(raw) == 0 {
		return Board{}, errors.New("no embedded config for board: " + board)
	}
	b := Board{
		Name:      board,
		Logging:   true,
		Indicator: IndicatorConfig{Pin: -1},
		Radio:     RadioConfig{Preset: PresetDefault, RxEnable: -1, TxEnable: -1},
	}
	b.Serial.Baud = 115200
	if err := json.Unmarshal(raw, &b); err != nil {
		return Board{}, errors.New("config " + board + ": " + err.Error())
	}
	if b.Radio.Preset == "" {
		b.Radio.Preset = PresetDefault
	}
	if _, err := Preset(b.Radio.Preset); err != nil {
		return Board{}, err
	}
	return b, nil
}

// RadioDefaults returns the boot configuration named by the board preset.
func (b Board) RadioDefaults() radio.Configuration {
	c, err := Preset(b.Radio.Preset)
	if err != nil {
		return radio.Defaults()
	}
	return c
}

// -----------------------------------------------------------------------------
// Presets
// -----------------------------------------------------------------------------

const (
	PresetDefault            = "default"
	PresetMeshtasticLongFast = "meshtastic-longfast"
	PresetMeshCore           = "meshcore"
)

var presets = map[string]radio.Configuration{
	PresetDefault: radio.Defaults(),
	PresetMeshtasticLongFast: {
		BaseFrequencyMHz: 869.525, FrequencyOffsetKHz: 10.5, BandwidthKHz: 250,
		SpreadingFactor: 11, CodingRate: 5, SyncWord: 0x1B, OutputPowerDBm: 22, PreambleLength: 16,
	},
	PresetMeshCore: {
		BaseFrequencyMHz: 869.618, FrequencyOffsetKHz: 10.5, BandwidthKHz: 62.5,
		SpreadingFactor: 8, CodingRate: 8, SyncWord: 0x12, OutputPowerDBm: 22, PreambleLength: 16,
	},
}

// Preset returns a named radio configuration (case-insensitive).
func Preset(name string) (radio.Configuration, error) {
	c, ok := presets[strings.ToLower(name)]
	if !ok {
		return radio.Configuration{}, errors.New("unknown radio preset: " + name)
	}
	return c, nil
}

// PresetNames lists the known presets in order.
func PresetNames() []string {
	out := make([]string, 0, len(presets))
	for k := range presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
