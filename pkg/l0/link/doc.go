// Package link provides the multiplexing transport between the host and the
// H7 co-processor.
package link

// The link is a single full-duplex synchronous bus (SPI). Every transfer
// exchanges exactly one fixed-size frame in each direction. A frame carries
// zero or more sub-packets, each tagged with the channel of the logical
// peripheral (ADC, PWM, CAN, UART, RTC, GPIO, UI) it belongs to.
//
// Frame layout (little endian):
//
//	offset 0: size      u16  bytes of sub-packets following the header
//	offset 2: checksum  u16  size ^ 0x5555
//	offset 4: sub-packets, each
//	          channel u8, opcode u8, size u16, size bytes of payload
//
// A sub-packet with channel 0 or size 0 terminates the frame.
//
// Producer: host peripheral clients and the H7 firmware
// Consumer: the other side
