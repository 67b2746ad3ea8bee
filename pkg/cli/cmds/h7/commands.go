// Package h7 adds the link commands to the shell.
package h7

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/h7link/pkg/capture"
	"github.com/robotalks/h7link/pkg/cli/sh"
	"github.com/robotalks/h7link/pkg/l0/link"
)

var (
	// SendCmd sends a sub-packet with a transfer.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "CHANNEL OPCODE [HEX...]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			pkt, err := sh.ParsePacket(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if err := sh.Engine(c).SendSync(pkt.Channel, pkt.Opcode, pkt.Data); err != nil {
				c.Err(err)
				return
			}
			sh.PrintResult(c, true, "OK")
		}),
	}

	// DeferCmd queues a sub-packet for the next transfer.
	DeferCmd = ishell.Cmd{
		Name:    "defer",
		Aliases: []string{"q"},
		Help:    "CHANNEL OPCODE [HEX...]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			pkt, err := sh.ParsePacket(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if err := sh.Engine(c).SendDeferred(pkt.Channel, pkt.Opcode, pkt.Data); err != nil {
				c.Err(err)
				return
			}
			sh.PrintResult(c, true, "Queued")
		}),
	}

	// FlushCmd performs a transfer.
	FlushCmd = ishell.Cmd{
		Name:    "flush",
		Aliases: []string{"f"},
		Help:    "",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			if err := sh.Engine(c).Flush(); err != nil {
				c.Err(err)
				return
			}
			sh.PrintResult(c, true, "OK")
		}),
	}

	// StatsCmd prints the engine counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			stats := sh.Engine(c).Stats()
			sh.PrintResult(c, stats, FormatStats(stats))
		}),
	}

	// ChannelsCmd lists the named channels.
	ChannelsCmd = ishell.Cmd{
		Name: "channels",
		Help: "",
		Func: func(c *ishell.Context) {
			var names []string
			for _, ch := range link.Channels() {
				names = append(names, fmt.Sprintf("%d %s", ch, strings.ToUpper(ch.String())))
			}
			sh.PrintResult(c, names, strings.Join(names, "\n"))
		},
	}

	// WatchCmd prints inbound packets of channels.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "CHANNEL... | off [CHANNEL...]",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("CHANNEL required"))
				return
			}
			args, off := c.Args, c.Args[0] == "off"
			if off {
				args = args[1:]
			}
			var channels []link.Channel
			for _, arg := range args {
				ch, err := sh.ParseChannel([]string{arg})
				if err != nil {
					c.Err(err)
					return
				}
				channels = append(channels, ch)
			}
			if off {
				watchers.unwatch(channels...)
				return
			}
			e := sh.Engine(c)
			for _, ch := range channels {
				if err := watchers.watch(e, ch, printer(c)); err != nil {
					c.Err(err)
					return
				}
			}
		}),
	}

	// TapCmd installs the debug tap.
	TapCmd = ishell.Cmd{
		Name: "tap",
		Help: "dump | off | FILE",
		Func: sh.MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("dump, off or FILE required"))
				return
			}
			e := sh.Engine(c)
			tap.stop(e)
			switch c.Args[0] {
			case "off":
				return
			case "dump":
				out := printer(c)
				e.SetDebugTap(link.HandleFrameFunc(func(ctx context.Context, raw []byte) {
					if f := link.FrameFrom(raw); f.Size() != 0 {
						var buf bytes.Buffer
						link.FormatFrame(&buf, "tap", f)
						out.Write(buf.Bytes())
					}
				}))
			default:
				f, err := os.Create(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				tap.writer = capture.NewWriter(f)
				tap.writer.SkipEmpty = true
				e.SetDebugTap(tap.writer)
			}
		}),
	}

	// ReplayCmd prints the packets of a capture file.
	ReplayCmd = ishell.Cmd{
		Name: "replay",
		Help: "FILE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("FILE required"))
				return
			}
			f, err := os.Open(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			defer f.Close()
			out := printer(c)
			err = capture.NewReader(f).Dispatch(context.Background(), link.HandlePacketFunc(func(ctx context.Context, pkt *link.Packet) {
				var buf bytes.Buffer
				link.FormatPacket(&buf, pkt)
				out.Write(buf.Bytes())
			}))
			if err != nil {
				c.Err(err)
			}
		},
	}
)

// FormatStats formats counters one per line.
func FormatStats(s link.Stats) string {
	return fmt.Sprintf(strings.Join([]string{
		"transfers:         %d",
		"transport errors:  %d",
		"packets out:       %d",
		"packets in:        %d",
		"packets dropped:   %d",
		"checksum errors:   %d",
		"malformed packets: %d",
		"truncated:         %d",
		"tapped frames:     %d",
	}, "\n"),
		s.Transfers, s.TransportErrors, s.PacketsOut, s.PacketsIn, s.PacketsDropped,
		s.ChecksumErrors, s.MalformedPackets, s.Truncated, s.TapFrames)
}

// printer serializes output from handlers running on the transfer path.
func printer(c *ishell.Context) io.Writer {
	return &lockedWriter{c: c}
}

var outputLock sync.Mutex

type lockedWriter struct {
	c *ishell.Context
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	outputLock.Lock()
	defer outputLock.Unlock()
	w.c.Print(string(p))
	return len(p), nil
}

type watcherSet struct {
	regs map[link.Channel]*link.Registration
	lock sync.Mutex
}

var watchers watcherSet

func (s *watcherSet) watch(e *link.Engine, ch link.Channel, out io.Writer) error {
	reg, err := e.Register(ch, link.HandlePacketFunc(func(ctx context.Context, pkt *link.Packet) {
		var buf bytes.Buffer
		link.FormatPacket(&buf, pkt)
		out.Write(buf.Bytes())
	}))
	if err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.regs == nil {
		s.regs = make(map[link.Channel]*link.Registration)
	}
	s.regs[ch] = reg
	return nil
}

func (s *watcherSet) unwatch(channels ...link.Channel) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(channels) == 0 {
		for ch := range s.regs {
			channels = append(channels, ch)
		}
	}
	for _, ch := range channels {
		if reg := s.regs[ch]; reg != nil {
			reg.Close()
			delete(s.regs, ch)
		}
	}
}

type tapState struct {
	writer *capture.Writer
}

var tap tapState

func (t *tapState) stop(e *link.Engine) {
	e.ClearDebugTap()
	if t.writer != nil {
		t.writer.Close()
		t.writer = nil
	}
}

func init() {
	sh.AddCmds(
		&SendCmd,
		&DeferCmd,
		&FlushCmd,
		&StatsCmd,
		&ChannelsCmd,
		&WatchCmd,
		&TapCmd,
		&ReplayCmd,
	)
}
