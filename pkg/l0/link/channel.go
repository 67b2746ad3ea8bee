package link

import "strconv"

// Channel identifies a logical peripheral multiplexed over the link.
type Channel uint8

// MaxChannels is the size of the dispatch table. Valid channels are
// 1 to MaxChannels-1, 0 is reserved.
const MaxChannels = 16

// Well-known channels served by the H7 firmware.
const (
	ChannelNone   Channel = 0x00
	ChannelADC    Channel = 0x01
	ChannelPWM    Channel = 0x02
	ChannelFDCAN1 Channel = 0x03
	ChannelFDCAN2 Channel = 0x04
	ChannelUART   Channel = 0x05
	ChannelRTC    Channel = 0x06
	ChannelGPIO   Channel = 0x07
	ChannelH7     Channel = 0x09
	ChannelUI     Channel = 0x0a
)

var channelNames = map[Channel]string{
	ChannelADC:    "adc",
	ChannelPWM:    "pwm",
	ChannelFDCAN1: "fdcan1",
	ChannelFDCAN2: "fdcan2",
	ChannelUART:   "uart",
	ChannelRTC:    "rtc",
	ChannelGPIO:   "gpio",
	ChannelH7:     "h7",
	ChannelUI:     "ui",
}

// IsValid checks if the channel can be registered.
func (c Channel) IsValid() bool {
	return c > 0 && c < MaxChannels
}

// String returns the peripheral name, or the number for unnamed channels.
func (c Channel) String() string {
	if name, ok := channelNames[c]; ok {
		return name
	}
	return strconv.Itoa(int(c))
}

// ParseChannel accepts a peripheral name (e.g. "fdcan1") or a number.
func ParseChannel(s string) (Channel, error) {
	for ch, name := range channelNames {
		if name == s {
			return ch, nil
		}
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return ChannelNone, ErrInvalidChannel
	}
	ch := Channel(n)
	if !ch.IsValid() {
		return ChannelNone, ErrInvalidChannel
	}
	return ch, nil
}

// Channels lists all named channels in ascending order.
func Channels() []Channel {
	chs := make([]Channel, 0, len(channelNames))
	for ch := Channel(1); ch < MaxChannels; ch++ {
		if _, ok := channelNames[ch]; ok {
			chs = append(chs, ch)
		}
	}
	return chs
}
