// Package env sets up the link, its event source and the bridge from
// configuration: defaults, environment variables, a TOML file and flags.
package env

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/robotalks/h7link/pkg/l0/link"
)

// Config provides the options to setup an Env.
type Config struct {
	// BusURL selects the transfer primitive, e.g.
	// spidev:///dev/spidev1.0?speed=1000000, tcp://host:port, ws://host/path.
	BusURL string
	// IRQ is the event source spec, see irq.Open.
	IRQ string
	// FrameSize is the fixed transfer size.
	FrameSize int
	// MaxPayload limits inbound payloads, 0 for FrameSize-8.
	MaxPayload int

	// MQTTURL is the broker of the bridge, no bridge if empty.
	// e.g. mqtt://host:port/topic-prefix
	MQTTURL string
	// ClientID is the MQTT client ID.
	ClientID string
	// Channels exposed by the bridge, comma separated names or numbers.
	// All named channels if empty.
	Channels string
	// StatsInterval is the period to publish stats, 0 to disable.
	StatsInterval time.Duration

	// CaptureFile records tapped frames when set.
	CaptureFile string
}

var defaultConfig = Config{
	BusURL:        "spidev:///dev/spidev1.0",
	IRQ:           "poll:100ms",
	FrameSize:     link.DefaultFrameSize,
	MQTTURL:       "",
	StatsInterval: 10 * time.Second,
}

func init() {
	if val := os.Getenv("H7_BUS_URL"); val != "" {
		defaultConfig.BusURL = val
	}
	if val := os.Getenv("H7_IRQ"); val != "" {
		defaultConfig.IRQ = val
	}
	if val := os.Getenv("H7_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
}

// SetupFlags sets command line flags. Values from -config apply at the
// position of the flag: later flags override the file.
func SetupFlags() {
	flag.Func("config", "TOML config file.", defaultConfig.LoadFile)
	flag.StringVar(&defaultConfig.BusURL, "bus", defaultConfig.BusURL, "Bus URL (spidev://, tcp://, unix://, ws://).")
	flag.StringVar(&defaultConfig.IRQ, "irq", defaultConfig.IRQ, "Event source: gpio:<line>, poll:<interval> or none.")
	flag.IntVar(&defaultConfig.FrameSize, "frame-size", defaultConfig.FrameSize, "Transfer frame size.")
	flag.IntVar(&defaultConfig.MaxPayload, "max-payload", defaultConfig.MaxPayload, "Inbound payload limit, 0 for frame size - 8.")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL of the bridge.")
	flag.StringVar(&defaultConfig.ClientID, "client-id", defaultConfig.ClientID, "MQTT client ID, derived from machine ID if empty.")
	flag.StringVar(&defaultConfig.Channels, "channels", defaultConfig.Channels, "Channels bridged to MQTT, all if empty.")
	flag.DurationVar(&defaultConfig.StatsInterval, "stats-interval", defaultConfig.StatsInterval, "Period to publish stats, 0 to disable.")
	flag.StringVar(&defaultConfig.CaptureFile, "capture", defaultConfig.CaptureFile, "Record tapped frames to file.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

type fileConfig struct {
	BusURL        string   `toml:"bus_url"`
	IRQ           string   `toml:"irq"`
	FrameSize     int      `toml:"frame_size"`
	MaxPayload    int      `toml:"max_payload"`
	MQTTURL       string   `toml:"mqtt_url"`
	ClientID      string   `toml:"client_id"`
	Channels      []string `toml:"channels"`
	StatsInterval string   `toml:"stats_interval"`
	CaptureFile   string   `toml:"capture_file"`
}

// LoadFile overlays the keys defined in a TOML file.
func (c *Config) LoadFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
	}
	if meta.IsDefined("bus_url") {
		c.BusURL = strings.TrimSpace(raw.BusURL)
	}
	if meta.IsDefined("irq") {
		c.IRQ = strings.TrimSpace(raw.IRQ)
	}
	if meta.IsDefined("frame_size") {
		c.FrameSize = raw.FrameSize
	}
	if meta.IsDefined("max_payload") {
		c.MaxPayload = raw.MaxPayload
	}
	if meta.IsDefined("mqtt_url") {
		c.MQTTURL = strings.TrimSpace(raw.MQTTURL)
	}
	if meta.IsDefined("client_id") {
		c.ClientID = strings.TrimSpace(raw.ClientID)
	}
	if meta.IsDefined("channels") {
		c.Channels = strings.Join(raw.Channels, ",")
	}
	if meta.IsDefined("stats_interval") {
		d, err := time.ParseDuration(raw.StatsInterval)
		if err != nil {
			return fmt.Errorf("load config %s: stats_interval: %w", path, err)
		}
		c.StatsInterval = d
	}
	if meta.IsDefined("capture_file") {
		c.CaptureFile = strings.TrimSpace(raw.CaptureFile)
	}
	return nil
}

// Validate checks the link settings.
func (c *Config) Validate() error {
	if !link.ValidFrameSize(c.FrameSize) {
		return fmt.Errorf("invalid frame size %d", c.FrameSize)
	}
	if c.MaxPayload < 0 {
		return fmt.Errorf("invalid max payload %d", c.MaxPayload)
	}
	_, err := c.ParseChannels()
	return err
}

// ParseChannels parses Channels.
func (c *Config) ParseChannels() ([]link.Channel, error) {
	var channels []link.Channel
	for _, name := range strings.Split(c.Channels, ",") {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		ch, err := link.ParseChannel(strings.ToLower(name))
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", name, err)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// LinkConfig returns the engine configuration.
func (c *Config) LinkConfig() link.Config {
	return link.Config{FrameSize: c.FrameSize, MaxPayload: c.MaxPayload}
}

// MQTTClientID returns ClientID or one derived from the machine ID.
func (c *Config) MQTTClientID(app string) string {
	if c.ClientID != "" {
		return c.ClientID
	}
	return app + ":" + MachineID()
}
