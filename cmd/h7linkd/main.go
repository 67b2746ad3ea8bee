package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/h7link/pkg/env"
	fx "github.com/robotalks/h7link/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	e := env.NewConfig().MustNewEnv("h7linkd")
	defer e.Close()
	if e.StartCapture() {
		glog.Infof("capturing inbound frames to %s, dispatch suspended", e.Config.CaptureFile)
	}
	if e.Bridge == nil {
		glog.Warning("no MQTT broker configured, inbound packets are dropped")
	}
	glog.Infof("link on %s, events from %s", e.Config.BusURL, e.Config.IRQ)
	if err := fx.NewRunner().HandleSignals().Run(e.Runnables()...); err != nil {
		glog.Error(err)
	}
	stats := e.Engine.Stats()
	glog.Infof("transfers %d, packets out %d in %d dropped %d, errors transport %d checksum %d malformed %d",
		stats.Transfers, stats.PacketsOut, stats.PacketsIn, stats.PacketsDropped,
		stats.TransportErrors, stats.ChecksumErrors, stats.MalformedPackets)
}
