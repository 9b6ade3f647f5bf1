package stm32l0

import "stm32dma-go/dma"

// Request routing for DMA1, RM0376 table 51 (subset: the endpoints this
// module has been used against). A target may only be selected on the
// channels listed here; the request id is the CxS field value.
var (
	ADC = dma.NewTarget("adc", 0, 1, 2)

	SPI1RX = dma.NewTarget("spi1_rx", 1, 2)
	SPI1TX = dma.NewTarget("spi1_tx", 1, 3)
	SPI2RX = dma.NewTarget("spi2_rx", 2, 4, 6)
	SPI2TX = dma.NewTarget("spi2_tx", 2, 5, 7)

	USART1TX = dma.NewTarget("usart1_tx", 3, 2, 4)
	USART1RX = dma.NewTarget("usart1_rx", 3, 3, 5)
	USART2TX = dma.NewTarget("usart2_tx", 4, 4, 7)
	USART2RX = dma.NewTarget("usart2_rx", 4, 5, 6)

	LPUART1TX = dma.NewTarget("lpuart1_tx", 5, 2, 7)
	LPUART1RX = dma.NewTarget("lpuart1_rx", 5, 3, 6)

	I2C1TX = dma.NewTarget("i2c1_tx", 6, 2, 6)
	I2C1RX = dma.NewTarget("i2c1_rx", 6, 3, 7)
	I2C2TX = dma.NewTarget("i2c2_tx", 7, 4)
	I2C2RX = dma.NewTarget("i2c2_rx", 7, 5)

	AESIN  = dma.NewTarget("aes_in", 11, 1, 5)
	AESOUT = dma.NewTarget("aes_out", 11, 2, 3)
)

// Targets lists the routing table, for lookups by name.
func Targets() []dma.Target {
	return []dma.Target{
		ADC,
		SPI1RX, SPI1TX, SPI2RX, SPI2TX,
		USART1TX, USART1RX, USART2TX, USART2RX,
		LPUART1TX, LPUART1RX,
		I2C1TX, I2C1RX, I2C2TX, I2C2RX,
		AESIN, AESOUT,
	}
}
