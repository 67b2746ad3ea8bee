// Package spidev runs the link on a Linux spidev device.
package spidev

import (
	"fmt"
	"net/url"
	"strconv"
)

// Config configures the SPI device.
type Config struct {
	// Path of the device node, e.g. /dev/spidev1.0.
	Path string
	// SpeedHz is the clock rate, 0 keeps the device default.
	SpeedHz uint32
	// Mode is the SPI mode (0-3).
	Mode uint8
	// BitsPerWord, 0 means 8.
	BitsPerWord uint8
}

// DefaultSpeedHz matches spi-max-frequency of the reference board.
const DefaultSpeedHz = 1000000

// ConfigFromURL parses spidev:///dev/spidev1.0?speed=1000000&mode=0&bits=8.
func ConfigFromURL(u *url.URL) (Config, error) {
	conf := Config{Path: u.Path, SpeedHz: DefaultSpeedHz}
	if conf.Path == "" {
		return conf, fmt.Errorf("spidev: missing device path")
	}
	q := u.Query()
	if val := q.Get("speed"); val != "" {
		n, err := strconv.ParseUint(val, 0, 32)
		if err != nil {
			return conf, fmt.Errorf("spidev: invalid speed %q: %w", val, err)
		}
		conf.SpeedHz = uint32(n)
	}
	if val := q.Get("mode"); val != "" {
		n, err := strconv.ParseUint(val, 0, 8)
		if err != nil || n > 3 {
			return conf, fmt.Errorf("spidev: invalid mode %q", val)
		}
		conf.Mode = uint8(n)
	}
	if val := q.Get("bits"); val != "" {
		n, err := strconv.ParseUint(val, 0, 8)
		if err != nil {
			return conf, fmt.Errorf("spidev: invalid bits %q: %w", val, err)
		}
		conf.BitsPerWord = uint8(n)
	}
	return conf, nil
}
