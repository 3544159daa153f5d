package radio

import (
	"strconv"

	"lorabridge/errcode"
	"lorabridge/x/mathx"
)

// Hardware limits enforced before anything reaches the driver.
const (
	MinFrequencyMHz = 150.0
	MaxFrequencyMHz = 960.0
	MaxBandwidthKHz = 500.0
	MinSF, MaxSF    = 7, 12
	MinCR, MaxCR    = 5, 8
	MinPowerDBm     = 0
	MaxPowerDBm     = 22
)

// Validate checks every field against the transceiver limits.
func (c Configuration) Validate() error {
	switch {
	case !mathx.Between(c.WorkingFrequencyMHz(), MinFrequencyMHz, MaxFrequencyMHz):
		return invalid("frequency " + ftoa(c.WorkingFrequencyMHz()) + " MHz out of range 150-960")
	case !(c.BandwidthKHz > 0 && c.BandwidthKHz <= MaxBandwidthKHz):
		return invalid("bandwidth " + ftoa(c.BandwidthKHz) + " kHz out of range (0-500]")
	case !mathx.Between(c.SpreadingFactor, MinSF, MaxSF):
		return invalid("spreading factor " + strconv.Itoa(int(c.SpreadingFactor)) + " out of range 7-12")
	case !mathx.Between(c.CodingRate, MinCR, MaxCR):
		return invalid("coding rate " + strconv.Itoa(int(c.CodingRate)) + " out of range 5-8")
	case !mathx.Between(c.OutputPowerDBm, MinPowerDBm, MaxPowerDBm):
		return invalid("output power " + strconv.Itoa(int(c.OutputPowerDBm)) + " dBm out of range 0-22")
	case c.PreambleLength == 0:
		return invalid("preamble length must be at least 1")
	}
	return nil
}

func invalid(msg string) error {
	return &errcode.E{C: errcode.InvalidParams, Op: "validate", Msg: msg}
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
