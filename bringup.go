package main

import (
	"flag"
	"fmt"
	stm32 "github.com/Jon-Bright/clkctl/stm32"
	"log"
	"strings"
)

var pllMul = flag.Int("pllmul", 9, "The PLL multiplier applied to the 8MHz HSE crystal. 9 gives the stock 72MHz SYSCLK.")
var enableDevs = flag.String("enable", "GPIOA,GPIOB,GPIOC,AFIO,USART1", "Comma-separated peripherals whose clocks should be turned on")
var resetDevs = flag.String("reset", "", "Comma-separated peripherals to reset once their clocks are up")

var clockIDs = map[string]stm32.ClockID{
	"GPIOA":  stm32.RCC_GPIOA,
	"GPIOB":  stm32.RCC_GPIOB,
	"GPIOC":  stm32.RCC_GPIOC,
	"GPIOD":  stm32.RCC_GPIOD,
	"AFIO":   stm32.RCC_AFIO,
	"ADC1":   stm32.RCC_ADC1,
	"USART1": stm32.RCC_USART1,
	"USART2": stm32.RCC_USART2,
	"USART3": stm32.RCC_USART3,
	"TIMER1": stm32.RCC_TIMER1,
	"TIMER2": stm32.RCC_TIMER2,
	"TIMER3": stm32.RCC_TIMER3,
	"TIMER4": stm32.RCC_TIMER4,
}

var pllMuls = map[int]uint32{
	2:  stm32.RCC_PLLMUL_2,
	3:  stm32.RCC_PLLMUL_3,
	4:  stm32.RCC_PLLMUL_4,
	5:  stm32.RCC_PLLMUL_5,
	6:  stm32.RCC_PLLMUL_6,
	7:  stm32.RCC_PLLMUL_7,
	8:  stm32.RCC_PLLMUL_8,
	9:  stm32.RCC_PLLMUL_9,
	10: stm32.RCC_PLLMUL_10,
	11: stm32.RCC_PLLMUL_11,
	12: stm32.RCC_PLLMUL_12,
	13: stm32.RCC_PLLMUL_13,
	14: stm32.RCC_PLLMUL_14,
	15: stm32.RCC_PLLMUL_15,
	16: stm32.RCC_PLLMUL_16,
}

func parseDevs(s string) ([]stm32.ClockID, error) {
	var devs []stm32.ClockID
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		dev, ok := clockIDs[strings.ToUpper(name)]
		if !ok {
			return nil, fmt.Errorf("unknown peripheral %q", name)
		}
		devs = append(devs, dev)
	}
	return devs, nil
}

func main() {
	flag.Parse()

	mul, ok := pllMuls[*pllMul]
	if !ok {
		log.Fatalf("Unsupported PLL multiplier %d", *pllMul)
	}
	enable, err := parseDevs(*enableDevs)
	if err != nil {
		log.Fatalf("Couldn't parse -enable: %v", err)
	}
	reset, err := parseDevs(*resetDevs)
	if err != nil {
		log.Fatalf("Couldn't parse -reset: %v", err)
	}

	rcc, err := stm32.NewRCC()
	if err != nil {
		log.Fatalf("Couldn't get at the RCC block: %v", err)
	}

	log.Printf("Starting SYSCLK off the PLL, HSE x%d", *pllMul)
	rcc.ClkInit(stm32.RCC_CLKSRC_PLL, stm32.RCC_PLLSRC_HSE, mul)

	// Stock 72MHz bus tree: AHB at SYSCLK, APB1 held to its 36MHz cap,
	// ADC inside its 14MHz cap. Prescalers go in before any peripheral
	// clocks come up so nothing sees the dividers switching.
	rcc.SetPrescaler(stm32.RCC_PRESCALER_AHB, stm32.RCC_AHB_SYSCLK_DIV_1)
	rcc.SetPrescaler(stm32.RCC_PRESCALER_APB1, stm32.RCC_APB1_HCLK_DIV_2)
	rcc.SetPrescaler(stm32.RCC_PRESCALER_APB2, stm32.RCC_APB2_HCLK_DIV_1)
	rcc.SetPrescaler(stm32.RCC_PRESCALER_ADC, stm32.RCC_ADCPRE_PCLK_DIV_6)

	for _, dev := range enable {
		rcc.ClkEnable(dev)
	}
	for _, dev := range reset {
		rcc.ResetDev(dev)
	}
	log.Printf("Clock setup done")
}
