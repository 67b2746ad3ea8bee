// Package sh provides the interactive shell of h7cli, driving a link
// opened from env.Config.
package sh

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/h7link/pkg/env"
	"github.com/robotalks/h7link/pkg/l0/link"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoOpen    bool

	Shell  *ishell.Shell
	Config *env.Config
	Env    *env.Env

	cancel func()
}

const (
	shellKey     = "$shell"
	closedPrompt = "[closed] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requires an open link.
func MustBeOpen(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Env == nil {
			c.Err(fmt.Errorf("link not open"))
			return
		}
		fn(c)
	}
}

// Engine returns the engine of the open link.
func Engine(c *ishell.Context) *link.Engine {
	return ShellFrom(c).Env.Engine
}

// PrintResult prints v as JSON in JSON mode, or the text otherwise.
func PrintResult(c *ishell.Context, v interface{}, text string) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// ParseChannel parses a channel name or number from args[0].
func ParseChannel(args []string) (link.Channel, error) {
	if len(args) < 1 {
		return link.ChannelNone, fmt.Errorf("CHANNEL required")
	}
	ch, err := link.ParseChannel(strings.ToLower(args[0]))
	if err != nil {
		return link.ChannelNone, fmt.Errorf("Invalid CHANNEL %q: %v", args[0], err)
	}
	return ch, nil
}

// ParsePacket parses CHANNEL OPCODE [HEX...].
func ParsePacket(args []string) (*link.Packet, error) {
	ch, err := ParseChannel(args)
	if err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("OPCODE required")
	}
	opcode, err := strconv.ParseUint(args[1], 0, 8)
	if err != nil {
		return nil, fmt.Errorf("Invalid OPCODE: %v", err)
	}
	data, err := ParseHex(args[2:])
	if err != nil {
		return nil, err
	}
	return &link.Packet{Channel: ch, Opcode: byte(opcode), Data: data}, nil
}

// ParseHex concatenates hex encoded args, e.g. "0a 0B" or "0x0a0b".
func ParseHex(args []string) ([]byte, error) {
	var data []byte
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.TrimPrefix(arg, "0x"), "0X")
		b, err := hex.DecodeString(arg)
		if err != nil {
			return nil, fmt.Errorf("Invalid DATA %q: %v", arg, err)
		}
		data = append(data, b...)
	}
	return data, nil
}

// WithAutoOpen sets AutoOpen.
func (s *Shell) WithAutoOpen(en bool) *Shell {
	s.AutoOpen = en
	return s
}

// Open opens the link and starts serving events in background.
func (s *Shell) Open() error {
	s.Close()
	// the shell neither bridges nor captures unless asked to
	conf := *s.Config
	conf.MQTTURL, conf.CaptureFile = "", ""
	e, err := conf.NewEnv("h7cli")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := e.Engine.Serve(ctx, e.Source); err != nil && err != context.Canceled {
			glog.Errorf("serve: %v", err)
		}
	}()
	s.Env = e
	s.cancel = func() {
		cancel()
		<-done
	}
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", s.Config.BusURL))
	return nil
}

// Close stops serving and closes the link.
func (s *Shell) Close() {
	if s.Env == nil {
		return
	}
	s.cancel()
	if err := s.Env.Close(); err != nil {
		glog.Warningf("close: %v", err)
	}
	s.Env, s.cancel = nil, nil
	s.Shell.SetPrompt(closedPrompt)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoOpen {
		if err := s.Open(); err != nil {
			glog.Exitf("open %s failed: %v", s.Config.BusURL, err)
		}
	}
	defer s.Close()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Exit(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Exit("command expected")
}

var (
	// OpenCmd opens the link.
	OpenCmd = ishell.Cmd{
		Name: "open",
		Help: "[BUS-URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.Config.BusURL = c.Args[0]
			}
			if err := s.Open(); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the link.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoOpen(true).Run(flag.Args()...)
}
