package sx1262

import "time"

// SPI framing. Every transaction waits for BUSY low, then holds NSS low
// for its whole length.

func (d *Device) waitBusy() error {
	if d.cfg.Busy == nil {
		return nil
	}
	deadline := time.Now().Add(d.cfg.BusyTimeout)
	for d.cfg.Busy.Get() {
		if time.Now().After(deadline) {
			return ErrBusyTimeout
		}
		time.Sleep(10 * time.Microsecond)
	}
	return nil
}

func (d *Device) transfer(w, r []byte) error {
	if err := d.waitBusy(); err != nil {
		return err
	}
	d.cfg.NSS.Set(false)
	err := d.spi.Tx(w, r)
	d.cfg.NSS.Set(true)
	return err
}

func (d *Device) command(op byte, params ...byte) error {
	w := d.w[:1+len(params)]
	w[0] = op
	copy(w[1:], params)
	return d.transfer(w, nil)
}

// read issues a Get command and returns n data bytes following the
// status byte. The returned slice aliases the device buffer.
func (d *Device) read(op byte, n int) ([]byte, error) {
	w := d.w[:2+n]
	r := d.r[:2+n]
	for i := range w {
		w[i] = nop
	}
	w[0] = op
	if err := d.transfer(w, r); err != nil {
		return nil, err
	}
	if err := checkStatus(r[1]); err != nil {
		return nil, err
	}
	return r[2:], nil
}

func (d *Device) status() (byte, error) {
	w := d.w[:2]
	r := d.r[:2]
	w[0], w[1] = cmdGetStatus, nop
	if err := d.transfer(w, r); err != nil {
		return 0, err
	}
	return r[1], nil
}

// checkStatus rejects command status timeout, processing error and
// execution failure.
func checkStatus(st byte) error {
	switch (st >> 1) & 0x7 {
	case 0x3, 0x4, 0x5:
		return ErrCommand
	}
	return nil
}

func (d *Device) irqStatus() (uint16, error) {
	b, err := d.read(cmdGetIrqStatus, 2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (d *Device) clearIRQ(mask uint16) error {
	return d.command(cmdClearIrqStatus, byte(mask>>8), byte(mask))
}

func (d *Device) writeRegister(addr uint16, data ...byte) error {
	w := d.w[:3+len(data)]
	w[0], w[1], w[2] = cmdWriteRegister, byte(addr>>8), byte(addr)
	copy(w[3:], data)
	return d.transfer(w, nil)
}

func (d *Device) readRegister(addr uint16, n int) ([]byte, error) {
	w := d.w[:4+n]
	r := d.r[:4+n]
	for i := range w {
		w[i] = nop
	}
	w[0], w[1], w[2] = cmdReadRegister, byte(addr>>8), byte(addr)
	if err := d.transfer(w, r); err != nil {
		return nil, err
	}
	return r[4:], nil
}

func (d *Device) writeBuffer(offset byte, data []byte) error {
	w := d.big[:2+len(data)]
	w[0], w[1] = cmdWriteBuffer, offset
	copy(w[2:], data)
	return d.transfer(w, nil)
}
