// Package stm32 drives the clock-control (RCC) block of STM32F1-series
// parts. It covers pretty much only basic clock setup: starting the HSE
// oscillator and the PLL, switching SYSCLK over to the PLL, gating
// per-peripheral clock lines, setting the bus prescalers and pulsing
// peripheral resets.
package stm32

// Register offsets from RCC_BASE. See RM0008 p99.
const (
	RCC_BASE = 0x40021000

	RCC_CR       = 0x00
	RCC_CFGR     = 0x04
	RCC_CIR      = 0x08
	RCC_APB2RSTR = 0x0C
	RCC_APB1RSTR = 0x10
	RCC_AHBENR   = 0x14
	RCC_APB2ENR  = 0x18
	RCC_APB1ENR  = 0x1C
	RCC_BDCR     = 0x20
	RCC_CSR      = 0x24
	RCC_AHBSTR   = 0x28
	RCC_CFGR2    = 0x2C

	RCC_BLOCK_SIZE = 0x30
)

// CR bits
const (
	RCC_CR_HSEON  = 0x1 << 16
	RCC_CR_HSERDY = 0x1 << 17
	RCC_CR_PLLON  = 0x1 << 24
	RCC_CR_PLLRDY = 0x1 << 25
)

// CFGR fields
const (
	RCC_CFGR_SW      = 0x3 << 0
	RCC_CFGR_SW_HSE  = 0x1 << 0
	RCC_CFGR_SW_PLL  = 0x2 << 0
	RCC_CFGR_SWS     = 0x3 << 2
	RCC_CFGR_SWS_HSE = 0x1 << 2
	RCC_CFGR_SWS_PLL = 0x2 << 2
	RCC_CFGR_HPRE    = 0xF << 4
	RCC_CFGR_PPRE1   = 0x7 << 8
	RCC_CFGR_PPRE2   = 0x7 << 11
	RCC_CFGR_ADCPRE  = 0x3 << 14
	RCC_CFGR_PLLSRC  = 0x1 << 16
	RCC_CFGR_PLLMUL  = 0xF << 18
	RCC_CFGR_USBPRE  = 0x1 << 22
)

// System clock sources, for ClkInit's sysclkSrc.
const (
	RCC_CLKSRC_HSI = 0x0
	RCC_CLKSRC_HSE = 0x1
	RCC_CLKSRC_PLL = 0x2
)

// PLL input sources, for ClkInit's pllSrc. These are raw CFGR bits.
const (
	RCC_PLLSRC_HSI_DIV_2 = 0x0 << 16
	RCC_PLLSRC_HSE       = 0x1 << 16
)

// PLL multipliers, for ClkInit's pllMul. Raw CFGR field values.
const (
	RCC_PLLMUL_2  = 0x0 << 18
	RCC_PLLMUL_3  = 0x1 << 18
	RCC_PLLMUL_4  = 0x2 << 18
	RCC_PLLMUL_5  = 0x3 << 18
	RCC_PLLMUL_6  = 0x4 << 18
	RCC_PLLMUL_7  = 0x5 << 18
	RCC_PLLMUL_8  = 0x6 << 18
	RCC_PLLMUL_9  = 0x7 << 18
	RCC_PLLMUL_10 = 0x8 << 18
	RCC_PLLMUL_11 = 0x9 << 18
	RCC_PLLMUL_12 = 0xA << 18
	RCC_PLLMUL_13 = 0xB << 18
	RCC_PLLMUL_14 = 0xC << 18
	RCC_PLLMUL_15 = 0xD << 18
	RCC_PLLMUL_16 = 0xE << 18
)

// Prescaler dividers, pre-shifted into their CFGR fields. SetPrescaler
// takes these raw; mixing a divider with the wrong prescaler is not caught.
const (
	RCC_AHB_SYSCLK_DIV_1   = 0x0 << 4
	RCC_AHB_SYSCLK_DIV_2   = 0x8 << 4
	RCC_AHB_SYSCLK_DIV_4   = 0x9 << 4
	RCC_AHB_SYSCLK_DIV_8   = 0xA << 4
	RCC_AHB_SYSCLK_DIV_16  = 0xB << 4
	RCC_AHB_SYSCLK_DIV_64  = 0xC << 4
	RCC_AHB_SYSCLK_DIV_128 = 0xD << 4
	RCC_AHB_SYSCLK_DIV_256 = 0xE << 4
	RCC_AHB_SYSCLK_DIV_512 = 0xF << 4

	RCC_APB1_HCLK_DIV_1  = 0x0 << 8
	RCC_APB1_HCLK_DIV_2  = 0x4 << 8
	RCC_APB1_HCLK_DIV_4  = 0x5 << 8
	RCC_APB1_HCLK_DIV_8  = 0x6 << 8
	RCC_APB1_HCLK_DIV_16 = 0x7 << 8

	RCC_APB2_HCLK_DIV_1  = 0x0 << 11
	RCC_APB2_HCLK_DIV_2  = 0x4 << 11
	RCC_APB2_HCLK_DIV_4  = 0x5 << 11
	RCC_APB2_HCLK_DIV_8  = 0x6 << 11
	RCC_APB2_HCLK_DIV_16 = 0x7 << 11

	RCC_ADCPRE_PCLK_DIV_2 = 0x0 << 14
	RCC_ADCPRE_PCLK_DIV_4 = 0x1 << 14
	RCC_ADCPRE_PCLK_DIV_6 = 0x2 << 14
	RCC_ADCPRE_PCLK_DIV_8 = 0x3 << 14

	RCC_USB_SYSCLK_DIV_1_5 = 0x0 << 22
	RCC_USB_SYSCLK_DIV_1   = 0x1 << 22
)

// ClockDomain says which bus's enable/reset register group a peripheral's
// clock line sits in.
type ClockDomain int

const (
	APB1 ClockDomain = iota
	APB2
	AHB
)

// ClockID identifies a peripheral to ClkEnable and ResetDev.
type ClockID int

const (
	RCC_GPIOA ClockID = iota
	RCC_GPIOB
	RCC_GPIOC
	RCC_GPIOD
	RCC_AFIO
	RCC_ADC1
	RCC_USART1
	RCC_USART2
	RCC_USART3
	RCC_TIMER1
	RCC_TIMER2
	RCC_TIMER3
	RCC_TIMER4

	numClockIDs
)

type rccDev struct {
	domain ClockDomain
	line   uint
}

// Which domain and enable/reset line each peripheral is on. See RM0008
// p112-p115. Every ClockID must have an entry here; rcc_test checks the
// table stays in step with the ClockID list.
var rccDevTable = [numClockIDs]rccDev{
	RCC_GPIOA:  {APB2, 2},
	RCC_GPIOB:  {APB2, 3},
	RCC_GPIOC:  {APB2, 4},
	RCC_GPIOD:  {APB2, 5},
	RCC_AFIO:   {APB2, 0},
	RCC_ADC1:   {APB2, 9},
	RCC_USART1: {APB2, 14},
	RCC_USART2: {APB1, 17},
	RCC_USART3: {APB1, 18},
	RCC_TIMER1: {APB2, 11},
	RCC_TIMER2: {APB1, 0},
	RCC_TIMER3: {APB1, 1},
	RCC_TIMER4: {APB1, 2},
}

var enableRegs = [...]uintptr{
	APB1: RCC_APB1ENR,
	APB2: RCC_APB2ENR,
	AHB:  RCC_AHBENR,
}

// AHB peripherals have no reset register on the F1.
var resetRegs = [...]uintptr{
	APB1: RCC_APB1RSTR,
	APB2: RCC_APB2RSTR,
}

// Prescaler identifies one of the bus prescalers to SetPrescaler.
type Prescaler int

const (
	RCC_PRESCALER_AHB Prescaler = iota
	RCC_PRESCALER_APB1
	RCC_PRESCALER_APB2
	RCC_PRESCALER_USB
	RCC_PRESCALER_ADC
)

var prescalerMasks = [...]uint32{
	RCC_PRESCALER_AHB:  RCC_CFGR_HPRE,
	RCC_PRESCALER_APB1: RCC_CFGR_PPRE1,
	RCC_PRESCALER_APB2: RCC_CFGR_PPRE2,
	RCC_PRESCALER_USB:  RCC_CFGR_USBPRE,
	RCC_PRESCALER_ADC:  RCC_CFGR_ADCPRE,
}

// RegisterFile is the access path to the RCC register block. Offsets are
// the RCC_* register offsets from RCC_BASE. Production code binds it to the
// memory-mapped block via NewRCC; tests substitute an in-memory fake.
type RegisterFile interface {
	Read(off uintptr) uint32
	Write(off uintptr, val uint32)
	SetBits(off uintptr, mask uint32)
	ClearBits(off uintptr, mask uint32)
}

// RCC drives the clock-control block through a RegisterFile.
type RCC struct {
	r RegisterFile
}

// NewRCCFromRegs returns an RCC driving the given register file. Use NewRCC
// for the real hardware.
func NewRCCFromRegs(r RegisterFile) *RCC {
	return &RCC{r}
}

// ClkInit starts the system clock. The only clock tree supported is the HSE
// oscillator feeding the PLL feeding SYSCLK, so sysclkSrc must be
// RCC_CLKSRC_PLL and pllSrc must be RCC_PLLSRC_HSE; anything else panics
// before touching the hardware. pllMul is one of the RCC_PLLMUL_* values.
//
// The HSE-ready, PLL-ready and switch-status waits spin forever. A missing
// or dead crystal therefore hangs the caller; there is no recovery path
// worth taking if the core clocking hardware doesn't come up.
func (rcc *RCC) ClkInit(sysclkSrc, pllSrc, pllMul uint32) {
	if sysclkSrc != RCC_CLKSRC_PLL || pllSrc != RCC_PLLSRC_HSE {
		panic("stm32: unsupported clock config, need PLL fed by HSE")
	}

	cr := rcc.r.Read(RCC_CR)

	// PLL source and multiplier have to be in place before the PLL starts
	cfgr := pllSrc | pllMul
	rcc.r.Write(RCC_CFGR, cfgr)

	// Turn on the HSE
	cr |= RCC_CR_HSEON
	rcc.r.Write(RCC_CR, cr)
	for rcc.r.Read(RCC_CR)&RCC_CR_HSERDY == 0 {
	}

	// Now the PLL
	cr |= RCC_CR_PLLON
	rcc.r.Write(RCC_CR, cr)
	for rcc.r.Read(RCC_CR)&RCC_CR_PLLRDY == 0 {
	}

	// Finally, switch SYSCLK over to the PLL. SWS is a separate read-only
	// field, so spin until the hardware reports the mux actually moved.
	cfgr &^= RCC_CFGR_SW
	cfgr |= RCC_CFGR_SW_PLL
	rcc.r.Write(RCC_CFGR, cfgr)
	for rcc.r.Read(RCC_CFGR)&RCC_CFGR_SWS != RCC_CFGR_SWS_PLL {
	}
}

// ClkEnable turns on the clock line feeding dev. Enabling an already-
// enabled clock changes nothing. dev must be one of the ClockID constants;
// anything out of range panics on the table lookup.
func (rcc *RCC) ClkEnable(dev ClockID) {
	d := rccDevTable[dev]
	rcc.r.SetBits(enableRegs[d.domain], 1<<d.line)
}

// SetPrescaler sets the divider on one of the bus prescalers. divider is a
// raw pre-shifted field value (one of the RCC_*_DIV_* constants); only the
// bits of the selected prescaler's field are cleared first, the rest of
// CFGR is left alone. Change prescalers before enabling the peripherals
// that depend on them - the bus glitches while the divider switches.
func (rcc *RCC) SetPrescaler(prescaler Prescaler, divider uint32) {
	cfgr := rcc.r.Read(RCC_CFGR)
	cfgr &^= prescalerMasks[prescaler]
	cfgr |= divider
	rcc.r.Write(RCC_CFGR, cfgr)
}

// ResetDev pulses dev's reset line, forcing its registers back to their
// power-on values. The pulse is set-then-clear with no inserted delay; the
// register round trip is long enough for the peripheral to latch it. Only
// APB1 and APB2 peripherals have reset lines on the F1; asking for an AHB
// peripheral panics.
func (rcc *RCC) ResetDev(dev ClockID) {
	d := rccDevTable[dev]
	rcc.resetDomain(d.domain, d.line)
}

func (rcc *RCC) resetDomain(domain ClockDomain, line uint) {
	if domain == AHB {
		panic("stm32: AHB peripherals have no reset line")
	}
	rcc.r.SetBits(resetRegs[domain], 1<<line)
	rcc.r.ClearBits(resetRegs[domain], 1<<line)
}
