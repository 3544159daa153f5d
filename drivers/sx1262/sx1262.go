// Package sx1262 is a LoRa driver for the Semtech SX1262 over SPI.
//
// The driver is command-level: every operation is one or more SPI
// transactions framed by NSS, each preceded by a wait on BUSY. Pins are
// passed as small interfaces (machine.Pin satisfies both) so the package
// builds and tests on the host.
//
// It implements radio.Driver. Received and transmitted packets both
// assert DIO1; the handler given to SetPacketReceivedAction is attached to
// that edge through Config.AttachIRQ.
package sx1262

import (
	"math"
	"time"

	"tinygo.org/x/drivers"

	"lorabridge/errcode"
	"lorabridge/radio"
)

// OutputPin drives a GPIO.
type OutputPin interface{ Set(high bool) }

// InputPin reads a GPIO.
type InputPin interface{ Get() bool }

// Errors returned by the driver.
var (
	ErrBusyTimeout  = &errcode.E{C: errcode.Timeout, Op: "sx1262", Msg: "busy timeout"}
	ErrTxTimeout    = &errcode.E{C: errcode.Timeout, Op: "sx1262", Msg: "transmit timeout"}
	ErrNotFound     = &errcode.E{C: errcode.DriverError, Op: "sx1262", Msg: "chip not responding"}
	ErrInvalidParam = &errcode.E{C: errcode.InvalidParams, Op: "sx1262", Msg: "invalid parameter"}
	ErrCommand      = &errcode.E{C: errcode.DriverError, Op: "sx1262", Msg: "command failed"}
	ErrHeader       = &errcode.E{C: errcode.DriverError, Op: "sx1262", Msg: "header error"}
)

// Config carries wiring and timing. NSS and Busy are required.
type Config struct {
	NSS   OutputPin
	Reset OutputPin // optional
	Busy  InputPin
	DIO1  InputPin // optional; transmit completion is polled over SPI without it

	// Output resolves an antenna switch enable by pin number.
	Output func(pin int) OutputPin
	// AttachIRQ arms a rising-edge interrupt on DIO1 that calls handler.
	AttachIRQ func(handler func()) error

	// DIO2RfSwitch lets the chip drive the antenna switch from DIO2.
	DIO2RfSwitch bool

	// BusyTimeout bounds each wait on BUSY. Default 100 ms.
	BusyTimeout time.Duration
	// TxTimeout overrides the computed transmit deadline (twice the time
	// on air plus 100 ms) when non-zero.
	TxTimeout time.Duration
}

// Device is one SX1262.
type Device struct {
	spi drivers.SPI
	cfg Config

	rxEn, txEn OutputPin
	irqErr     error

	p    radio.Params
	ldro bool

	rxStart byte
	rssi    float32
	snr     float32

	w   [16]byte
	r   [16]byte
	big [3 + radio.MaxPayload]byte
	bgr [3 + radio.MaxPayload]byte
}

// New returns a Device. It does not touch the chip.
func New(spi drivers.SPI, cfg Config) *Device {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 100 * time.Millisecond
	}
	return &Device{spi: spi, cfg: cfg}
}

// Begin resets the chip and programs every parameter in p.
func (d *Device) Begin(p radio.Params) error {
	if d.cfg.Reset != nil {
		d.cfg.Reset.Set(false)
		time.Sleep(time.Millisecond)
		d.cfg.Reset.Set(true)
		time.Sleep(10 * time.Millisecond)
	}
	if err := d.command(cmdSetStandby, standbyRC); err != nil {
		return err
	}
	st, err := d.status()
	if err != nil {
		return err
	}
	if st == 0x00 || st == 0xFF || (st>>4)&0x7 != chipModeStbyRC {
		return ErrNotFound
	}

	if p.TCXOVoltage > 0 {
		code, ok := tcxoCode(p.TCXOVoltage)
		if !ok {
			return ErrInvalidParam
		}
		// 5 ms start-up in 15.625 us steps.
		if err := d.command(cmdSetDIO3AsTcxoCtrl, code, 0x00, 0x01, 0x40); err != nil {
			return err
		}
	}
	if err := d.command(cmdCalibrate, calibrateAll); err != nil {
		return err
	}
	if err := d.command(cmdSetRegulatorMode, regulatorDCDC); err != nil {
		return err
	}
	if err := d.command(cmdSetPacketType, packetTypeLoRa); err != nil {
		return err
	}
	if err := d.command(cmdSetBufferBaseAddress, 0x00, 0x00); err != nil {
		return err
	}
	if d.cfg.DIO2RfSwitch {
		if err := d.command(cmdSetDIO2AsRfSwitchCtrl, 0x01); err != nil {
			return err
		}
	}
	if err := d.command(cmdSetPaConfig, 0x04, 0x07, 0x00, 0x01); err != nil {
		return err
	}
	if err := d.writeRegister(regOCP, ocp140mA); err != nil {
		return err
	}
	// Same mask enabled and routed to DIO1.
	m := uint16(irqMask)
	if err := d.command(cmdSetDioIrqParams,
		byte(m>>8), byte(m), byte(m>>8), byte(m), 0, 0, 0, 0); err != nil {
		return err
	}

	// Seed the cached values so partial updates below send complete frames.
	d.p = p
	if err := d.SetFrequency(p.FrequencyMHz); err != nil {
		return err
	}
	if err := d.SetBandwidth(p.BandwidthKHz); err != nil {
		return err
	}
	if err := d.SetSyncWord(p.SyncWord); err != nil {
		return err
	}
	if err := d.SetOutputPower(p.OutputPowerDBm); err != nil {
		return err
	}
	return d.SetPreambleLength(p.PreambleLength)
}

// SetRfSwitchPins assigns the antenna switch enables; -1 leaves one unused.
func (d *Device) SetRfSwitchPins(rxEnable, txEnable int) {
	if d.cfg.Output == nil {
		return
	}
	if rxEnable >= 0 {
		d.rxEn = d.cfg.Output(rxEnable)
	}
	if txEnable >= 0 {
		d.txEn = d.cfg.Output(txEnable)
	}
	d.rfSwitch(false, false)
}

// SetPacketReceivedAction attaches fn to DIO1. An attach failure is
// reported by the next StartReceive.
func (d *Device) SetPacketReceivedAction(fn func()) {
	if d.cfg.AttachIRQ == nil {
		return
	}
	d.irqErr = errcode.Wrap(errcode.DriverError, "attach dio1", d.cfg.AttachIRQ(fn))
}

// StartReceive enters continuous receive.
func (d *Device) StartReceive() error {
	if d.irqErr != nil {
		return d.irqErr
	}
	d.rfSwitch(true, false)
	if err := d.clearIRQ(irqAll); err != nil {
		return err
	}
	if err := d.packetParams(0xFF); err != nil {
		return err
	}
	return d.command(cmdSetRx, 0xFF, 0xFF, 0xFF)
}

// Standby leaves receive or transmit.
func (d *Device) Standby() error {
	d.rfSwitch(false, false)
	return d.command(cmdSetStandby, standbyRC)
}

// SetFrequency programs the carrier and recalibrates image rejection.
func (d *Device) SetFrequency(mhz float64) error {
	if !(mhz >= radio.MinFrequencyMHz && mhz <= radio.MaxFrequencyMHz) {
		return ErrInvalidParam
	}
	lo := byte(math.Floor((mhz - 4) / 4))
	hi := byte(math.Ceil((mhz + 4) / 4))
	if err := d.command(cmdCalibrateImage, lo, hi); err != nil {
		return err
	}
	f := FrequencyWord(mhz)
	if err := d.command(cmdSetRfFrequency, byte(f>>24), byte(f>>16), byte(f>>8), byte(f)); err != nil {
		return err
	}
	d.p.FrequencyMHz = mhz
	return nil
}

// FrequencyWord converts MHz to the RF frequency register value
// (32 MHz crystal, 2^25 steps).
func FrequencyWord(mhz float64) uint32 {
	return uint32(math.Round(mhz * float64(1<<25) / 32))
}

func (d *Device) SetBandwidth(khz float64) error {
	if _, ok := bandwidthCode(khz); !ok {
		return ErrInvalidParam
	}
	return d.modulation(khz, d.p.SpreadingFactor, d.p.CodingRate)
}

func (d *Device) SetSpreadingFactor(sf uint8) error {
	if sf < 5 || sf > 12 {
		return ErrInvalidParam
	}
	return d.modulation(d.p.BandwidthKHz, sf, d.p.CodingRate)
}

func (d *Device) SetCodingRate(cr uint8) error {
	if cr < 5 || cr > 8 {
		return ErrInvalidParam
	}
	return d.modulation(d.p.BandwidthKHz, d.p.SpreadingFactor, cr)
}

func (d *Device) modulation(khz float64, sf, cr uint8) error {
	code, ok := bandwidthCode(khz)
	if !ok || sf < 5 || sf > 12 || cr < 5 || cr > 8 {
		return ErrInvalidParam
	}
	ldro := symbolTime(sf, khz) >= 16380*time.Microsecond
	var l byte
	if ldro {
		l = 1
	}
	if err := d.command(cmdSetModulationParams, sf, code, cr-4, l); err != nil {
		return err
	}
	d.p.BandwidthKHz, d.p.SpreadingFactor, d.p.CodingRate = khz, sf, cr
	d.ldro = ldro
	return nil
}

// SetSyncWord writes the one-byte LoRa sync word with the standard
// control nibbles.
func (d *Device) SetSyncWord(sw uint8) error {
	b0 := (sw & 0xF0) | (syncControl&0xF0)>>4
	b1 := (sw&0x0F)<<4 | syncControl&0x0F
	if err := d.writeRegister(regSyncWord, b0, b1); err != nil {
		return err
	}
	d.p.SyncWord = sw
	return nil
}

// SetOutputPower sets the PA level in dBm (-9..22).
func (d *Device) SetOutputPower(dbm int8) error {
	if dbm < -9 || dbm > 22 {
		return ErrInvalidParam
	}
	if err := d.command(cmdSetTxParams, byte(dbm), rampTime200us); err != nil {
		return err
	}
	d.p.OutputPowerDBm = dbm
	return nil
}

func (d *Device) SetPreambleLength(n uint16) error {
	if n == 0 {
		return ErrInvalidParam
	}
	d.p.PreambleLength = n
	return d.packetParams(0xFF)
}

// packetParams: explicit header, CRC on, standard IQ.
func (d *Device) packetParams(payloadLen byte) error {
	n := d.p.PreambleLength
	return d.command(cmdSetPacketParams, byte(n>>8), byte(n), 0x00, payloadLen, 0x01, 0x00)
}

// PacketLength returns the length of the frame in the buffer, or 0 when
// the chip cannot be read.
func (d *Device) PacketLength() int {
	b, err := d.read(cmdGetRxBufferStatus, 2)
	if err != nil {
		return 0
	}
	d.rxStart = b[1]
	return int(b[0])
}

// ReadData copies the last frame and caches its link metrics. A checksum
// failure returns radio.ErrCRCMismatch.
func (d *Device) ReadData(buf []byte) error {
	irq, err := d.irqStatus()
	if err != nil {
		return err
	}
	if irq&irqCrcErr != 0 {
		_ = d.clearIRQ(irqAll)
		return radio.ErrCRCMismatch
	}
	if irq&irqHeaderErr != 0 {
		_ = d.clearIRQ(irqAll)
		return ErrHeader
	}
	if len(buf) > radio.MaxPayload {
		return ErrInvalidParam
	}

	n := len(buf)
	w := d.big[:3+n]
	r := d.bgr[:3+n]
	for i := range w {
		w[i] = nop
	}
	w[0], w[1] = cmdReadBuffer, d.rxStart
	if err := d.transfer(w, r); err != nil {
		return err
	}
	copy(buf, r[3:])

	ps, err := d.read(cmdGetPacketStatus, 3)
	if err != nil {
		return err
	}
	d.rssi = -float32(ps[0]) / 2
	d.snr = float32(int8(ps[1])) / 4
	return d.clearIRQ(irqAll)
}

// Transmit sends data and waits for tx done.
func (d *Device) Transmit(data []byte) error {
	if len(data) == 0 || len(data) > radio.MaxPayload {
		return ErrInvalidParam
	}
	if err := d.Standby(); err != nil {
		return err
	}
	if err := d.packetParams(byte(len(data))); err != nil {
		return err
	}
	if err := d.writeBuffer(0x00, data); err != nil {
		return err
	}
	if err := d.clearIRQ(irqAll); err != nil {
		return err
	}
	d.rfSwitch(false, true)
	if err := d.command(cmdSetTx, 0x00, 0x00, 0x00); err != nil {
		return err
	}

	timeout := d.cfg.TxTimeout
	if timeout <= 0 {
		timeout = 2*d.TimeOnAir(len(data)) + 100*time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		done, err := d.txDone()
		if err != nil {
			return err
		}
		if done {
			break
		}
		if time.Now().After(deadline) {
			_ = d.Standby()
			return ErrTxTimeout
		}
		time.Sleep(time.Millisecond)
	}
	if err := d.clearIRQ(irqAll); err != nil {
		return err
	}
	return d.Standby()
}

func (d *Device) txDone() (bool, error) {
	if d.cfg.DIO1 != nil {
		return d.cfg.DIO1.Get(), nil
	}
	irq, err := d.irqStatus()
	return irq&irqTxDone != 0, err
}

func (d *Device) RSSI() float32 { return d.rssi }
func (d *Device) SNR() float32  { return d.snr }

// FrequencyError returns the estimated carrier offset of the last packet
// in Hz, or 0 when it cannot be read.
func (d *Device) FrequencyError() float32 {
	b, err := d.readRegister(regFreqError, 3)
	if err != nil {
		return 0
	}
	return frequencyError(uint32(b[0])<<16|uint32(b[1])<<8|uint32(b[2]), d.p.BandwidthKHz)
}

func frequencyError(raw uint32, bwKHz float64) float32 {
	efe := raw & 0x0FFFFF
	sign := float32(1)
	if efe&0x80000 != 0 {
		efe = (^efe + 1) & 0x0FFFFF
		sign = -1
	}
	return sign * 1.55 * float32(efe) / (1600 / float32(bwKHz))
}

// TimeOnAir returns the air time of an n-byte frame at the current
// settings (explicit header, CRC on).
func (d *Device) TimeOnAir(n int) time.Duration {
	return timeOnAir(n, d.p.SpreadingFactor, d.p.BandwidthKHz, d.p.CodingRate, d.p.PreambleLength, d.ldro)
}

func timeOnAir(n int, sf uint8, bwKHz float64, cr uint8, preamble uint16, ldro bool) time.Duration {
	if bwKHz <= 0 || sf == 0 {
		return 0
	}
	tsym := float64(uint32(1)<<sf) / (bwKHz * 1000)
	de := 0.0
	if ldro {
		de = 1
	}
	num := float64(8*n-4*int(sf)+28+16) / (4 * (float64(sf) - 2*de))
	symbols := 8 + math.Max(math.Ceil(num)*float64(cr), 0)
	secs := (float64(preamble)+4.25)*tsym + symbols*tsym
	return time.Duration(secs * float64(time.Second))
}

func symbolTime(sf uint8, bwKHz float64) time.Duration {
	if bwKHz <= 0 {
		return 0
	}
	return time.Duration(float64(uint32(1)<<sf) / (bwKHz * 1000) * float64(time.Second))
}

func bandwidthCode(khz float64) (byte, bool) {
	for _, b := range bandwidths {
		if math.Abs(khz-b.khz) <= 0.01 {
			return b.code, true
		}
	}
	return 0, false
}

func tcxoCode(v float32) (byte, bool) {
	for _, t := range tcxoVoltages {
		if math.Abs(float64(v-t.v)) <= 0.01 {
			return t.code, true
		}
	}
	return 0, false
}

func (d *Device) rfSwitch(rx, tx bool) {
	if d.rxEn != nil {
		d.rxEn.Set(rx)
	}
	if d.txEn != nil {
		d.txEn.Set(tx)
	}
}

var _ radio.Driver = (*Device)(nil)
