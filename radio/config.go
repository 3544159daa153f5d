package radio

// MaxPayload is the largest payload a single radio frame carries.
const MaxPayload = 255

// Configuration is the full parameter set of the transceiver.
type Configuration struct {
	BaseFrequencyMHz   float64 `json:"freq"`
	FrequencyOffsetKHz float64 `json:"offset"`
	BandwidthKHz       float64 `json:"bw"`
	SpreadingFactor    uint8   `json:"sf"`
	CodingRate         uint8   `json:"cr"`
	SyncWord           uint8   `json:"sync"`
	OutputPowerDBm     int8    `json:"power"`
	PreambleLength     uint16  `json:"preamble"`
}

// Defaults returns the boot configuration.
func Defaults() Configuration {
	return Configuration{
		BaseFrequencyMHz:   869.525,
		FrequencyOffsetKHz: 10.5,
		BandwidthKHz:       250.0,
		SpreadingFactor:    11,
		CodingRate:         5,
		SyncWord:           0x1B,
		OutputPowerDBm:     22,
		PreambleLength:     16,
	}
}

// WorkingFrequencyMHz is the frequency actually programmed into the radio.
func (c Configuration) WorkingFrequencyMHz() float64 {
	return c.BaseFrequencyMHz + c.FrequencyOffsetKHz/1000
}

// Params converts c into the driver's begin parameters.
func (c Configuration) Params(tcxoVolts float32) Params {
	return Params{
		FrequencyMHz:    c.WorkingFrequencyMHz(),
		BandwidthKHz:    c.BandwidthKHz,
		SpreadingFactor: c.SpreadingFactor,
		CodingRate:      c.CodingRate,
		SyncWord:        c.SyncWord,
		OutputPowerDBm:  c.OutputPowerDBm,
		PreambleLength:  c.PreambleLength,
		TCXOVoltage:     tcxoVolts,
	}
}
