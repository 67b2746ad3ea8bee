package env

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/h7link/pkg/bridge/mqtt"
	"github.com/robotalks/h7link/pkg/capture"
	fx "github.com/robotalks/h7link/pkg/framework"
	"github.com/robotalks/h7link/pkg/l0/bus"
	"github.com/robotalks/h7link/pkg/l0/bus/spidev"
	"github.com/robotalks/h7link/pkg/l0/bus/stream"
	"github.com/robotalks/h7link/pkg/l0/bus/websocket"
	"github.com/robotalks/h7link/pkg/l0/irq"
	"github.com/robotalks/h7link/pkg/l0/link"
)

// NewTransferer opens the bus selected by BusURL.
func (c *Config) NewTransferer() (bus.Transferer, io.Closer, error) {
	u, err := url.Parse(c.BusURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid bus URL: %w", err)
	}
	switch u.Scheme {
	case "spidev":
		conf, err := spidev.ConfigFromURL(u)
		if err != nil {
			return nil, nil, err
		}
		dev, err := spidev.Open(conf)
		if err != nil {
			return nil, nil, err
		}
		return dev, dev, nil
	case "tcp", "unix":
		addr := u.Host
		if u.Scheme == "unix" {
			addr = u.Path
		}
		conn, err := net.Dial(u.Scheme, addr)
		if err != nil {
			return nil, nil, err
		}
		t := stream.New(conn)
		return t, t, nil
	case "ws", "wss":
		t, err := websocket.Dial(c.BusURL)
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil
	default:
		return nil, nil, fmt.Errorf("unknown bus URL scheme: %q", u.Scheme)
	}
}

// NewSource opens the event source selected by IRQ.
func (c *Config) NewSource() (irq.Source, error) {
	return irq.Open(c.IRQ)
}

// Env holds the link and everything around it.
type Env struct {
	Config *Config
	Engine *link.Engine
	Source irq.Source
	Bridge *mqtt.Bridge
	Queue  *mqtt.Queue

	Capture *capture.Writer

	closers []io.Closer
}

// NewEnv opens the bus and the event source, and creates the bridge if
// MQTTURL is set. The bridge connects when its Runnable runs.
func (c *Config) NewEnv(app string) (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	env := &Env{Config: c}
	t, closer, err := c.NewTransferer()
	if err != nil {
		return nil, fmt.Errorf("open bus %s: %w", c.BusURL, err)
	}
	env.closers = append(env.closers, closer)
	env.Engine = c.LinkConfig().NewEngine(t)

	if env.Source, err = c.NewSource(); err != nil {
		env.Close()
		return nil, fmt.Errorf("open event source %s: %w", c.IRQ, err)
	}
	if closer, ok := env.Source.(io.Closer); ok {
		env.closers = append(env.closers, closer)
	}

	if c.MQTTURL != "" {
		channels, _ := c.ParseChannels()
		if env.Queue, err = mqtt.NewBrokerQueue(c.MQTTURL, c.MQTTClientID(app)); err != nil {
			env.Close()
			return nil, fmt.Errorf("create MQTT client error: %w", err)
		}
		env.Bridge = mqtt.New(env.Engine, env.Queue, mqtt.Config{
			Channels:      channels,
			StatsInterval: c.StatsInterval,
		})
	}

	if c.CaptureFile != "" {
		f, err := os.Create(c.CaptureFile)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("create capture: %w", err)
		}
		env.Capture = capture.NewWriter(f)
		env.Capture.SkipEmpty = true
		env.closers = append(env.closers, env.Capture)
	}
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv(app string) *Env {
	env, err := c.NewEnv(app)
	if err != nil {
		glog.Exit(err)
	}
	return env
}

// Runnables returns what should run for the env: the event loop and the
// bridge if configured.
func (e *Env) Runnables() []fx.Runnable {
	runners := []fx.Runnable{
		fx.NamedRun("link", &link.EventLoop{Engine: e.Engine, Source: e.Source}),
	}
	if e.Bridge != nil {
		runners = append(runners, fx.NamedRun("bridge", fx.RunnableFunc(e.runBridge)))
	}
	return runners
}

func (e *Env) runBridge(ctx context.Context) error {
	token := e.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect MQTT broker: %w", err)
	}
	defer e.Queue.Close()
	return e.Bridge.Run(ctx)
}

// StartCapture installs the capture writer as debug tap.
func (e *Env) StartCapture() bool {
	if e.Capture == nil {
		return false
	}
	e.Engine.SetDebugTap(e.Capture)
	return true
}

// Close releases the bus, the event source and the capture file.
func (e *Env) Close() error {
	if e.Engine != nil {
		e.Engine.ClearDebugTap()
	}
	var errs fx.AggregatedError
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs.Add(e.closers[i].Close())
	}
	e.closers = nil
	return errs.Aggregate()
}
