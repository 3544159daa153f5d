package types

// Level classifies a log event on the host link.
type Level string

const (
	LevelInfo   Level = "INFO"
	LevelWarn   Level = "WARN"
	LevelError  Level = "ERROR"
	LevelStatus Level = "STATUS"
)

// Event type discriminators.
const (
	EventLog    = "log"
	EventLoRaRx = "lora_rx"
)

// LogEvent is one diagnostic or command response line.
type LogEvent struct {
	Type    string `json:"type"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// RxEvent reports one received radio packet. FrequencyError is in kHz.
type RxEvent struct {
	Type           string  `json:"type"`
	RSSI           int     `json:"rssi"`
	SNR            float64 `json:"snr"`
	FrequencyError float64 `json:"frequencyError"`
	Payload        string  `json:"payload"`
}

// Event is the union used by readers that do not know the line type yet.
type Event struct {
	Type string `json:"type"`

	Level   Level  `json:"level,omitempty"`
	Message string `json:"message,omitempty"`

	RSSI           int     `json:"rssi,omitempty"`
	SNR            float64 `json:"snr,omitempty"`
	FrequencyError float64 `json:"frequencyError,omitempty"`
	Payload        string  `json:"payload,omitempty"`
}

// IndicatorMode is the status light state published on the bus.
type IndicatorMode uint8

const (
	IndicatorInit IndicatorMode = iota
	IndicatorHeartbeat
	IndicatorRxPulse
	IndicatorTxPulse
	IndicatorError
)

func (m IndicatorMode) String() string {
	switch m {
	case IndicatorInit:
		return "init"
	case IndicatorHeartbeat:
		return "heartbeat"
	case IndicatorRxPulse:
		return "rx_pulse"
	case IndicatorTxPulse:
		return "tx_pulse"
	case IndicatorError:
		return "error"
	}
	return "unknown"
}
