package sx1262

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"lorabridge/errcode"
	"lorabridge/radio"
)

// fakeChip records NSS-framed transactions and answers reads from a
// per-opcode table.
type fakeChip struct {
	frames  [][]byte
	cur     []byte
	inFrame bool
	status  byte
	answers map[byte][]byte
	txErr   error
}

func newFakeChip() *fakeChip {
	return &fakeChip{status: 0x22, answers: map[byte][]byte{}}
}

type nssPin struct{ c *fakeChip }

func (p nssPin) Set(high bool) {
	if !high {
		p.c.inFrame = true
		p.c.cur = nil
		return
	}
	if p.c.inFrame {
		p.c.frames = append(p.c.frames, p.c.cur)
		p.c.inFrame = false
	}
}

func dataOffset(op byte) int {
	switch op {
	case cmdReadRegister:
		return 4
	case cmdReadBuffer:
		return 3
	}
	return 2
}

func (c *fakeChip) Tx(w, r []byte) error {
	if c.txErr != nil {
		return c.txErr
	}
	c.cur = append(c.cur, w...)
	if r != nil && len(w) > 0 {
		for i := range r {
			r[i] = 0
		}
		if len(r) > 1 {
			r[1] = c.status
		}
		if a, ok := c.answers[w[0]]; ok {
			copy(r[dataOffset(w[0]):], a)
		}
	}
	return nil
}

func (c *fakeChip) Transfer(b byte) (byte, error) { return 0, nil }

func (c *fakeChip) ops() []byte {
	out := make([]byte, len(c.frames))
	for i, f := range c.frames {
		out[i] = f[0]
	}
	return out
}

func (c *fakeChip) lastFrame(op byte) []byte {
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i][0] == op {
			return c.frames[i]
		}
	}
	return nil
}

type boolPin struct{ v bool }

func (p *boolPin) Get() bool  { return p.v }
func (p *boolPin) Set(v bool) { p.v = v }

func newDevice(t *testing.T, mod func(*Config)) (*Device, *fakeChip) {
	t.Helper()
	c := newFakeChip()
	cfg := Config{NSS: nssPin{c}, Busy: &boolPin{}}
	if mod != nil {
		mod(&cfg)
	}
	return New(c, cfg), c
}

func defaultParams() radio.Params {
	return radio.Defaults().Params(0)
}

func TestBegin_CommandSequence(t *testing.T) {
	d, c := newDevice(t, func(cfg *Config) { cfg.DIO2RfSwitch = true })
	if err := d.Begin(defaultParams()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	want := []byte{
		cmdSetStandby, cmdGetStatus, cmdCalibrate, cmdSetRegulatorMode, cmdSetPacketType,
		cmdSetBufferBaseAddress, cmdSetDIO2AsRfSwitchCtrl, cmdSetPaConfig, cmdWriteRegister,
		cmdSetDioIrqParams, cmdCalibrateImage, cmdSetRfFrequency, cmdSetModulationParams,
		cmdWriteRegister, cmdSetTxParams, cmdSetPacketParams,
	}
	if !bytes.Equal(c.ops(), want) {
		t.Fatalf("ops=% x\nwant % x", c.ops(), want)
	}
	mod := c.lastFrame(cmdSetModulationParams)
	// SF11 @ 250 kHz: symbol 8.2 ms, no low data rate optimisation.
	if !bytes.Equal(mod, []byte{cmdSetModulationParams, 11, 0x05, 0x01, 0x00}) {
		t.Fatalf("modulation=% x", mod)
	}
	pp := c.lastFrame(cmdSetPacketParams)
	if !bytes.Equal(pp, []byte{cmdSetPacketParams, 0x00, 16, 0x00, 0xFF, 0x01, 0x00}) {
		t.Fatalf("packet params=% x", pp)
	}
	if tx := c.lastFrame(cmdSetTxParams); tx[1] != 22 {
		t.Fatalf("tx params=% x", tx)
	}
}

func TestBegin_RoutesIRQsToDIO1(t *testing.T) {
	d, c := newDevice(t, nil)
	if err := d.Begin(defaultParams()); err != nil {
		t.Fatal(err)
	}
	// tx done, rx done, header error, CRC error, timeout = 0x0263.
	want := []byte{cmdSetDioIrqParams, 0x02, 0x63, 0x02, 0x63, 0, 0, 0, 0}
	if f := c.lastFrame(cmdSetDioIrqParams); !bytes.Equal(f, want) {
		t.Fatalf("irq params=% x\nwant % x", f, want)
	}
}

func TestBegin_TCXO(t *testing.T) {
	d, c := newDevice(t, nil)
	p := defaultParams()
	p.TCXOVoltage = 1.8
	if err := d.Begin(p); err != nil {
		t.Fatal(err)
	}
	f := c.lastFrame(cmdSetDIO3AsTcxoCtrl)
	if !bytes.Equal(f, []byte{cmdSetDIO3AsTcxoCtrl, 0x02, 0x00, 0x01, 0x40}) {
		t.Fatalf("tcxo=% x", f)
	}
	p.TCXOVoltage = 2.0
	if err := d.Begin(p); !errors.Is(err, ErrInvalidParam) {
		t.Fatalf("err=%v", err)
	}
}

func TestBegin_ChipMissing(t *testing.T) {
	d, c := newDevice(t, nil)
	c.status = 0x00
	if err := d.Begin(defaultParams()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestBegin_SPIError(t *testing.T) {
	d, c := newDevice(t, nil)
	c.txErr = errors.New("spi down")
	if err := d.Begin(defaultParams()); err == nil || err.Error() != "spi down" {
		t.Fatalf("err=%v", err)
	}
}

func TestSetFrequency(t *testing.T) {
	d, c := newDevice(t, nil)
	if err := d.SetFrequency(868.0); err != nil {
		t.Fatal(err)
	}
	if f := c.lastFrame(cmdSetRfFrequency); !bytes.Equal(f, []byte{cmdSetRfFrequency, 0x36, 0x40, 0x00, 0x00}) {
		t.Fatalf("freq frame=% x", f)
	}
	if f := c.lastFrame(cmdCalibrateImage); !bytes.Equal(f, []byte{cmdCalibrateImage, 0xD8, 0xDA}) {
		t.Fatalf("image cal=% x", f)
	}
	n := len(c.frames)
	for _, bad := range []float64{149, 961, math.NaN()} {
		if err := d.SetFrequency(bad); !errors.Is(err, ErrInvalidParam) {
			t.Fatalf("SetFrequency(%v) err=%v", bad, err)
		}
	}
	if len(c.frames) != n {
		t.Fatal("invalid frequency reached the chip")
	}
}

func TestFrequencyWord(t *testing.T) {
	if got := FrequencyWord(868); got != 0x36400000 {
		t.Fatalf("word=%#x", got)
	}
	if got := FrequencyWord(915); got != 0x39300000 {
		t.Fatalf("word=%#x", got)
	}
}

func TestSetSyncWord(t *testing.T) {
	d, c := newDevice(t, nil)
	cases := map[uint8][2]byte{0x12: {0x14, 0x24}, 0x34: {0x34, 0x44}, 0x1B: {0x14, 0xB4}}
	for sw, want := range cases {
		if err := d.SetSyncWord(sw); err != nil {
			t.Fatal(err)
		}
		f := c.lastFrame(cmdWriteRegister)
		if !bytes.Equal(f, []byte{cmdWriteRegister, 0x07, 0x40, want[0], want[1]}) {
			t.Fatalf("sync %#x frame=% x", sw, f)
		}
	}
}

func TestModulation_LowDataRateOptimisation(t *testing.T) {
	d, c := newDevice(t, nil)
	if err := d.Begin(defaultParams()); err != nil {
		t.Fatal(err)
	}
	if err := d.SetBandwidth(125); err != nil {
		t.Fatal(err)
	}
	if err := d.SetSpreadingFactor(12); err != nil {
		t.Fatal(err)
	}
	f := c.lastFrame(cmdSetModulationParams)
	if !bytes.Equal(f, []byte{cmdSetModulationParams, 12, 0x04, 0x01, 0x01}) {
		t.Fatalf("modulation=% x", f)
	}
	if err := d.SetBandwidth(62.5); err != nil {
		t.Fatal(err)
	}
	if err := d.SetSpreadingFactor(8); err != nil {
		t.Fatal(err)
	}
	if err := d.SetCodingRate(8); err != nil {
		t.Fatal(err)
	}
	f = c.lastFrame(cmdSetModulationParams)
	if !bytes.Equal(f, []byte{cmdSetModulationParams, 8, 0x03, 0x04, 0x00}) {
		t.Fatalf("modulation=% x", f)
	}
}

func TestSetters_RejectInvalid(t *testing.T) {
	d, c := newDevice(t, nil)
	if err := d.Begin(defaultParams()); err != nil {
		t.Fatal(err)
	}
	n := len(c.frames)
	checks := []error{
		d.SetBandwidth(100),
		d.SetSpreadingFactor(4),
		d.SetSpreadingFactor(13),
		d.SetCodingRate(9),
		d.SetOutputPower(23),
		d.SetOutputPower(-10),
		d.SetPreambleLength(0),
		d.Transmit(nil),
		d.Transmit(make([]byte, 256)),
	}
	for i, err := range checks {
		if !errors.Is(err, ErrInvalidParam) {
			t.Errorf("check %d: err=%v", i, err)
		}
	}
	if len(c.frames) != n {
		t.Fatal("invalid parameter reached the chip")
	}
}

func TestStartReceive(t *testing.T) {
	rx, tx := &boolPin{}, &boolPin{}
	d, c := newDevice(t, func(cfg *Config) {
		cfg.Output = func(pin int) OutputPin {
			if pin == 1 {
				return rx
			}
			return tx
		}
	})
	d.SetRfSwitchPins(1, 2)
	if err := d.StartReceive(); err != nil {
		t.Fatal(err)
	}
	if !rx.v || tx.v {
		t.Fatalf("switch rx=%v tx=%v", rx.v, tx.v)
	}
	want := []byte{cmdClearIrqStatus, cmdSetPacketParams, cmdSetRx}
	if !bytes.Equal(c.ops(), want) {
		t.Fatalf("ops=% x", c.ops())
	}
	if f := c.lastFrame(cmdSetRx); !bytes.Equal(f, []byte{cmdSetRx, 0xFF, 0xFF, 0xFF}) {
		t.Fatalf("rx frame=% x", f)
	}
}

func TestStartReceive_ReportsAttachFailure(t *testing.T) {
	d, _ := newDevice(t, func(cfg *Config) {
		cfg.AttachIRQ = func(func()) error { return errors.New("no irq") }
	})
	d.SetPacketReceivedAction(func() {})
	err := d.StartReceive()
	if err == nil || err.Error() != "attach dio1: no irq" || errcode.Of(err) != errcode.DriverError {
		t.Fatalf("err=%v", err)
	}

	ok, _ := newDevice(t, func(cfg *Config) {
		cfg.AttachIRQ = func(func()) error { return nil }
	})
	ok.SetPacketReceivedAction(func() {})
	if err := ok.StartReceive(); err != nil {
		t.Fatalf("clean attach: %v", err)
	}
}

func TestReadData(t *testing.T) {
	d, c := newDevice(t, nil)
	c.answers[cmdGetRxBufferStatus] = []byte{5, 0x80}
	c.answers[cmdGetIrqStatus] = []byte{0x00, irqRxDone}
	c.answers[cmdReadBuffer] = []byte("hello")
	c.answers[cmdGetPacketStatus] = []byte{175, 25, 170}

	n := d.PacketLength()
	if n != 5 {
		t.Fatalf("len=%d", n)
	}
	buf := make([]byte, n)
	if err := d.ReadData(buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hello" {
		t.Fatalf("data=%q", buf)
	}
	if f := c.lastFrame(cmdReadBuffer); f[1] != 0x80 {
		t.Fatalf("read offset=%#x", f[1])
	}
	if d.RSSI() != -87.5 || d.SNR() != 6.25 {
		t.Fatalf("rssi=%v snr=%v", d.RSSI(), d.SNR())
	}
}

func TestReadData_CRCAndHeaderErrors(t *testing.T) {
	d, c := newDevice(t, nil)
	c.answers[cmdGetIrqStatus] = []byte{0x00, irqRxDone | irqCrcErr}
	if err := d.ReadData(make([]byte, 3)); !errors.Is(err, radio.ErrCRCMismatch) {
		t.Fatalf("err=%v", err)
	}
	c.answers[cmdGetIrqStatus] = []byte{0x00, irqHeaderErr}
	if err := d.ReadData(make([]byte, 3)); !errors.Is(err, ErrHeader) {
		t.Fatalf("err=%v", err)
	}
}

func TestCommandStatusErrors(t *testing.T) {
	d, c := newDevice(t, nil)
	c.status = 0x2A // command status 5: failure to execute
	if n := d.PacketLength(); n != 0 {
		t.Fatalf("len=%d", n)
	}
	if err := d.ReadData(make([]byte, 1)); !errors.Is(err, ErrCommand) {
		t.Fatalf("err=%v", err)
	}
}

func TestFrequencyErrorConversion(t *testing.T) {
	if got := frequencyError(0x000400, 125); math.Abs(float64(got)-124) > 1e-3 {
		t.Fatalf("positive=%v", got)
	}
	if got := frequencyError(0x0FFC00, 125); math.Abs(float64(got)+124) > 1e-3 {
		t.Fatalf("negative=%v", got)
	}
	d, c := newDevice(t, nil)
	d.p.BandwidthKHz = 125
	c.answers[cmdReadRegister] = []byte{0x00, 0x04, 0x00}
	if got := d.FrequencyError(); math.Abs(float64(got)-124) > 1e-3 {
		t.Fatalf("register=%v", got)
	}
}

func TestTimeOnAir(t *testing.T) {
	got := timeOnAir(10, 7, 125, 5, 8, false)
	want := 41216 * time.Microsecond
	if diff := got - want; diff < -10*time.Microsecond || diff > 10*time.Microsecond {
		t.Fatalf("toa=%v want %v", got, want)
	}
	if timeOnAir(255, 12, 62.5, 8, 16, true) < 10*time.Second {
		t.Fatal("long range frame should exceed 10 s")
	}
}

func TestTransmit(t *testing.T) {
	dio1 := &boolPin{v: true}
	rx, tx := &boolPin{}, &boolPin{}
	d, c := newDevice(t, func(cfg *Config) {
		cfg.DIO1 = dio1
		cfg.Output = func(pin int) OutputPin {
			if pin == 1 {
				return rx
			}
			return tx
		}
	})
	if err := d.Begin(defaultParams()); err != nil {
		t.Fatal(err)
	}
	d.SetRfSwitchPins(1, 2)
	c.frames = nil
	if err := d.Transmit([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	wb := c.lastFrame(cmdWriteBuffer)
	if !bytes.Equal(wb, []byte{cmdWriteBuffer, 0x00, 'a', 'b', 'c'}) {
		t.Fatalf("buffer=% x", wb)
	}
	pp := c.lastFrame(cmdSetPacketParams)
	if pp[4] != 3 {
		t.Fatalf("payload length=% x", pp)
	}
	if c.lastFrame(cmdSetTx) == nil {
		t.Fatal("no SetTx")
	}
	if last := c.frames[len(c.frames)-1]; last[0] != cmdSetStandby {
		t.Fatalf("did not return to standby: % x", last)
	}
	if tx.v || rx.v {
		t.Fatal("antenna switch left enabled")
	}
}

func TestTransmit_PollsIRQWithoutDIO1(t *testing.T) {
	d, c := newDevice(t, nil)
	if err := d.Begin(defaultParams()); err != nil {
		t.Fatal(err)
	}
	c.answers[cmdGetIrqStatus] = []byte{0x00, irqTxDone}
	if err := d.Transmit([]byte{1}); err != nil {
		t.Fatal(err)
	}
}

func TestTransmit_Timeout(t *testing.T) {
	d, _ := newDevice(t, func(cfg *Config) {
		cfg.DIO1 = &boolPin{}
		cfg.TxTimeout = 5 * time.Millisecond
	})
	if err := d.Begin(defaultParams()); err != nil {
		t.Fatal(err)
	}
	if err := d.Transmit([]byte{1}); !errors.Is(err, ErrTxTimeout) {
		t.Fatalf("err=%v", err)
	}
}

func TestBusyTimeout(t *testing.T) {
	d, _ := newDevice(t, func(cfg *Config) {
		cfg.Busy = &boolPin{v: true}
		cfg.BusyTimeout = time.Millisecond
	})
	if err := d.Standby(); !errors.Is(err, ErrBusyTimeout) {
		t.Fatalf("err=%v", err)
	}
}
