package protocol

import (
	"strconv"
	"strings"

	"lorabridge/radio"
)

const helpText = "Commands: help | " +
	`{"command":{"help":{}}} | ` +
	`{"command":{"getloraconfig":{}}} | ` +
	`{"command":{"sendlora":{"payload":"<base64>"}}} | ` +
	`{"command":{"setloraconfig":{"freq":869.525,"offset":10.5,"bw":250,"sf":11,"cr":5,"sync":"0x1B","power":22,"preamble":16}}} | ` +
	`{"command":{"logging":{"enabled":true}}}`

// DescribeConfig renders cfg for the getloraconfig response.
func DescribeConfig(c radio.Configuration) string {
	var b strings.Builder
	b.WriteString("LoRa Config: Freq=")
	b.WriteString(strconv.FormatFloat(c.BaseFrequencyMHz, 'f', 3, 64))
	b.WriteString(" MHz, Offset=")
	b.WriteString(strconv.FormatFloat(c.FrequencyOffsetKHz, 'f', -1, 64))
	b.WriteString(" kHz, BW=")
	b.WriteString(strconv.FormatFloat(c.BandwidthKHz, 'f', 1, 64))
	b.WriteString(" kHz, SF=")
	b.WriteString(strconv.Itoa(int(c.SpreadingFactor)))
	b.WriteString(", CR=")
	b.WriteString(strconv.Itoa(int(c.CodingRate)))
	b.WriteString(", Sync=0x")
	h := strings.ToUpper(strconv.FormatUint(uint64(c.SyncWord), 16))
	if len(h) < 2 {
		b.WriteByte('0')
	}
	b.WriteString(h)
	b.WriteString(", Power=")
	b.WriteString(strconv.Itoa(int(c.OutputPowerDBm)))
	b.WriteString(" dBm, Preamble=")
	b.WriteString(strconv.Itoa(int(c.PreambleLength)))
	return b.String()
}
