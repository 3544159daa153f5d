package sx1262

// Opcodes.
const (
	cmdSetStandby            = 0x80
	cmdSetRx                 = 0x82
	cmdSetTx                 = 0x83
	cmdSetRfFrequency        = 0x86
	cmdCalibrate             = 0x89
	cmdSetPacketType         = 0x8A
	cmdSetModulationParams   = 0x8B
	cmdSetPacketParams       = 0x8C
	cmdSetTxParams           = 0x8E
	cmdSetBufferBaseAddress  = 0x8F
	cmdSetPaConfig           = 0x95
	cmdSetRegulatorMode      = 0x96
	cmdSetDIO3AsTcxoCtrl     = 0x97
	cmdCalibrateImage        = 0x98
	cmdSetDIO2AsRfSwitchCtrl = 0x9D
	cmdSetDioIrqParams       = 0x08
	cmdClearIrqStatus        = 0x02
	cmdWriteRegister         = 0x0D
	cmdReadRegister          = 0x1D
	cmdWriteBuffer           = 0x0E
	cmdReadBuffer            = 0x1E
	cmdGetIrqStatus          = 0x12
	cmdGetRxBufferStatus     = 0x13
	cmdGetPacketStatus       = 0x14
	cmdGetStatus             = 0xC0
)

// Registers.
const (
	regSyncWord  = 0x0740 // two bytes
	regOCP       = 0x08E7
	regFreqError = 0x076B // three bytes, 20-bit two's complement
)

// IRQ bits.
const (
	irqTxDone    = 0x0001
	irqRxDone    = 0x0002
	irqHeaderErr = 0x0020
	irqCrcErr    = 0x0040
	irqTimeout   = 0x0200
	irqAll       = 0x03FF

	irqMask = irqTxDone | irqRxDone | irqHeaderErr | irqCrcErr | irqTimeout
)

const (
	standbyRC      = 0x00
	packetTypeLoRa = 0x01
	regulatorDCDC  = 0x01
	calibrateAll   = 0x7F
	rampTime200us  = 0x04
	ocp140mA       = 0x38
	syncControl    = 0x44
	nop            = 0x00

	chipModeStbyRC = 0x2
)

// bandwidths maps kHz to the modulation parameter code.
var bandwidths = [...]struct {
	khz  float64
	code byte
}{
	{7.8, 0x00}, {10.4, 0x08}, {15.6, 0x01}, {20.8, 0x09}, {31.25, 0x02},
	{41.7, 0x0A}, {62.5, 0x03}, {125, 0x04}, {250, 0x05}, {500, 0x06},
}

// tcxoVoltages maps supply volts to the DIO3 control code.
var tcxoVoltages = [...]struct {
	v    float32
	code byte
}{
	{1.6, 0x00}, {1.7, 0x01}, {1.8, 0x02}, {2.2, 0x03},
	{2.4, 0x04}, {2.7, 0x05}, {3.0, 0x06}, {3.3, 0x07},
}
