package radio

import "lorabridge/errcode"

// ErrCRCMismatch is returned by ReadData when the frame failed its checksum.
var ErrCRCMismatch error = errcode.CRCMismatch

// Params are the values pushed to the transceiver at begin.
type Params struct {
	FrequencyMHz    float64
	BandwidthKHz    float64
	SpreadingFactor uint8
	CodingRate      uint8
	SyncWord        uint8
	OutputPowerDBm  int8
	PreambleLength  uint16
	TCXOVoltage     float32 // 0 disables TCXO control
}

// Driver is the transceiver as seen by the controller. A nil error is the
// only success; the controller never retries a failed call.
type Driver interface {
	Begin(p Params) error
	// SetRfSwitchPins assigns the antenna switch enables; -1 is unconnected.
	SetRfSwitchPins(rxEnable, txEnable int)
	// SetPacketReceivedAction registers fn to run in interrupt context on
	// every packet interrupt (rx done and tx done alike).
	SetPacketReceivedAction(fn func())

	StartReceive() error
	Standby() error

	SetFrequency(mhz float64) error
	SetBandwidth(khz float64) error
	SetSpreadingFactor(sf uint8) error
	SetCodingRate(cr uint8) error
	SetSyncWord(sw uint8) error
	SetOutputPower(dbm int8) error
	SetPreambleLength(n uint16) error

	// PacketLength returns the length of the last received frame.
	PacketLength() int
	// ReadData copies the last frame into buf (len(buf) == PacketLength).
	ReadData(buf []byte) error
	// Transmit blocks until the frame is on air or the hardware gives up.
	Transmit(data []byte) error

	RSSI() float32           // dBm of the last packet
	SNR() float32            // dB of the last packet
	FrequencyError() float32 // Hz of the last packet
}
