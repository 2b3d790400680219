package hardware

// ChannelReg is a register offset relative to a PWM channel base.
type ChannelReg uint16

// Channel register offsets.
const (
	RegPatternConfig ChannelReg = 0x40 // LUT pattern direction/repeat/toggle/pause flags
	RegSizeClk       ChannelReg = 0x41 // PWM size (6/9 bit) and clock select
	RegPreDivClk     ChannelReg = 0x42 // [6:5]=pre-divider, [2:0]=exponent
	RegTypeConfig    ChannelReg = 0x43 // bit 5 = glitch removal
	RegPWMValue      ChannelReg = 0x44 // 16-bit LE duty code (0x44-0x45)
	RegEnableControl ChannelReg = 0x46
	RegSync          ChannelReg = 0x47
	RegRampDuration  ChannelReg = 0x50 // step time in ms
	RegHiPause       ChannelReg = 0x52 // hi pause in steps
	RegLoPause       ChannelReg = 0x54 // lo pause in steps
	RegHiIdx         ChannelReg = 0x56
	RegLoIdx         ChannelReg = 0x57
	RegSecAccess     ChannelReg = 0xd0 // write SecAccessUnlock before any DTEST write
	regDTESTBase     ChannelReg = 0xe2
)

// RegDTEST returns the DTEST register offset for a 1-based DTEST line.
func RegDTEST(line uint8) ChannelReg {
	return regDTESTBase + ChannelReg(line) - 1
}

// At resolves the offset against a channel base address.
func (r ChannelReg) At(base Addr) Addr { return base + Addr(r) }

// TriledReg is a register offset relative to the TRILED block base.
type TriledReg uint16

// TRILED register offsets.
const (
	RegTriledSrcSel TriledReg = 0x45 // power source select
	RegTriledEnCtl  TriledReg = 0x46 // one enable bit per TRILED output
	RegTriledATCCtl TriledReg = 0x47 // automatic trickle charge LED control
)

// At resolves the offset against the TRILED block base address.
func (r TriledReg) At(base Addr) Addr { return base + Addr(r) }

// LUTReg is a register offset relative to the LUT block base.
type LUTReg uint16

// RegRampControl starts the ramp generators selected by the written mask.
const RegRampControl LUTReg = 0xc8

const regLUTEntryBase LUTReg = 0x40

// RegLUTEntry returns the offset of the 16-bit LE LUT entry idx.
func RegLUTEntry(idx int) LUTReg {
	return regLUTEntryBase + LUTReg(idx)*2
}

// At resolves the offset against the LUT block base address.
func (r LUTReg) At(base Addr) Addr { return base + Addr(r) }

// Type config bits.
const TypeConfigGlitchRemoval byte = 1 << 5

// Enable control bits.
const (
	EnableOutput         byte = 1 << 7
	EnableBufferTristate byte = 1 << 5
	EnableSrcPWM         byte = 1 << 2
	EnableRampGen        byte = 1 << 1
)

// Pattern config bits.
const (
	PatternLoToHi  byte = 1 << 4
	PatternRepeat  byte = 1 << 3
	PatternToggle  byte = 1 << 2
	PatternPauseHi byte = 1 << 1
	PatternPauseLo byte = 1 << 0
)

// SyncPWM latches the staged PWM configuration.
const SyncPWM byte = 1 << 0

// SecAccessUnlock unlocks the secured DTEST registers for one write.
const SecAccessUnlock byte = 0xa5

// PutLE16 encodes v as two little-endian bytes, the layout of PWM value and
// LUT entry registers.
func PutLE16(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}

// LE16 decodes two little-endian bytes.
func LE16(b []byte) uint16 {
	if len(b) < 2 {
		return 0
	}
	return uint16(b[0]) | uint16(b[1])<<8
}
