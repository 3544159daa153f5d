package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: board name passed to Load.
// Val: raw JSON for that board. Absent fields take the defaults in Load.
// -----------------------------------------------------------------------------

// Raspberry Pi Pico with a Waveshare SX1262 HAT (antenna switch on DIO2).
const cfgPico = `{
  "logging": true,
  "serial": {"uart": 0, "tx": 0, "rx": 1, "baud": 115200, "echo": true, "max_line": 512},
  "indicator": {"pin": 25},
  "radio": {
    "preset": "default",
    "spi": {"bus": 1, "sck": 10, "sdo": 11, "sdi": 12, "hz": 2000000},
    "nss": 3, "reset": 15, "busy": 2, "dio1": 20,
    "rx_enable": -1, "tx_enable": -1,
    "dio2_rf_switch": true,
    "tcxo_voltage": 0
  }
}`

// Pico with an E22 module driving discrete antenna switch enables.
const cfgPicoE22 = `{
  "logging": true,
  "serial": {"uart": 0, "tx": 0, "rx": 1, "baud": 115200, "echo": true},
  "indicator": {"pin": 25},
  "radio": {
    "preset": "default",
    "spi": {"bus": 0, "sck": 18, "sdo": 19, "sdi": 16, "hz": 4000000},
    "nss": 17, "reset": 22, "busy": 21, "dio1": 20,
    "rx_enable": 6, "tx_enable": 7,
    "tcxo_voltage": 1.8
  }
}`

// Host simulator: stdin/stdout link, stub radio.
const cfgHost = `{
  "logging": true,
  "serial": {"echo": false},
  "indicator": {"pin": -1},
  "radio": {"preset": "default", "rx_enable": -1, "tx_enable": -1}
}`

var embeddedConfigs = map[string][]byte{
	"pico":     []byte(cfgPico),
	"pico-e22": []byte(cfgPicoE22),
	"host":     []byte(cfgHost),
}
