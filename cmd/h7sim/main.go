package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/h7link/pkg/framework"
	"github.com/robotalks/h7link/pkg/l0/bus/stream"
	"github.com/robotalks/h7link/pkg/l0/bus/websocket"
	"github.com/robotalks/h7link/pkg/l0/link"
	"github.com/robotalks/h7link/pkg/sim"
)

var (
	tcpAddr     = ":7000"
	wsAddr      = ""
	frameSize   = link.DefaultFrameSize
	echo        = "uart,fdcan1,fdcan2"
	rtcInterval = time.Duration(0)
)

func init() {
	flag.StringVar(&tcpAddr, "listen", tcpAddr, "TCP address to serve frames, empty to disable.")
	flag.StringVar(&wsAddr, "ws", wsAddr, "HTTP address to serve frames over websocket at /link.")
	flag.IntVar(&frameSize, "frame-size", frameSize, "Transfer frame size.")
	flag.StringVar(&echo, "echo", echo, "Channels echoing sub-packets back.")
	flag.DurationVar(&rtcInterval, "rtc", rtcInterval, "Period to report time on the RTC channel, 0 to disable.")
}

func serveTCP(p *sim.Peer, ln net.Listener) fx.Runnable {
	return fx.RunnableFunc(func(ctx context.Context) error {
		return fx.RunWithContextCloser(ctx, ln, func() error {
			for {
				conn, err := ln.Accept()
				if err != nil {
					return err
				}
				glog.Infof("host connected from %s", conn.RemoteAddr())
				go func() {
					defer conn.Close()
					err := stream.Serve(conn, frameSize, p.Respond)
					glog.Infof("host %s disconnected: %v", conn.RemoteAddr(), err)
				}()
			}
		})
	})
}

func serveWS(p *sim.Peer, addr string) fx.Runnable {
	mux := http.NewServeMux()
	mux.Handle("/link", websocket.Handler(frameSize, p.Respond))
	srv := &http.Server{Addr: addr, Handler: mux}
	return fx.RunnableFunc(func(ctx context.Context) error {
		return fx.RunWithContextCloser(ctx, srv, srv.ListenAndServe)
	})
}

func main() {
	flag.Parse()
	defer glog.Flush()

	p := sim.NewPeer(frameSize)
	for _, name := range strings.Split(echo, ",") {
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		ch, err := link.ParseChannel(name)
		if err != nil {
			glog.Exitf("echo channel %q: %v", name, err)
		}
		p.Handle(ch, sim.Echo)
	}

	runner := fx.NewRunner().HandleSignals()
	if tcpAddr != "" {
		ln, err := net.Listen("tcp", tcpAddr)
		if err != nil {
			glog.Exit(err)
		}
		glog.Infof("serving frames on tcp %s", ln.Addr())
		runner.Go(fx.NamedRun("tcp", serveTCP(p, ln)))
	}
	if wsAddr != "" {
		glog.Infof("serving frames on ws://%s/link", wsAddr)
		runner.Go(fx.NamedRun("ws", serveWS(p, wsAddr)))
	}
	if rtcInterval > 0 {
		runner.Go(fx.NamedRun("rtc", fx.RunnableFunc(func(ctx context.Context) error {
			return p.Ticker(ctx, rtcInterval, link.ChannelRTC, 1, sim.UnixNano)
		})))
	}
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}
