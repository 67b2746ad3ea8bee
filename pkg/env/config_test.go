package env

import (
	"errors"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/h7link/pkg/l0/bus/stream"
	"github.com/robotalks/h7link/pkg/l0/bus/websocket"
	"github.com/robotalks/h7link/pkg/l0/irq"
	"github.com/robotalks/h7link/pkg/l0/link"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "h7link.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	conf := Config{BusURL: "tcp://a:1", IRQ: "none", FrameSize: 256, StatsInterval: time.Second}
	require.NoError(t, conf.LoadFile(writeFile(t, `
bus_url = "ws://emulator/link"
max_payload = 64
mqtt_url = "mqtt://broker:1883/h7/"
channels = ["fdcan1", "UART", "9"]
stats_interval = "2s"
`)))
	require.Equal(t, "ws://emulator/link", conf.BusURL)
	require.Equal(t, "none", conf.IRQ)
	require.Equal(t, 256, conf.FrameSize)
	require.Equal(t, 64, conf.MaxPayload)
	require.Equal(t, "mqtt://broker:1883/h7/", conf.MQTTURL)
	require.Equal(t, 2*time.Second, conf.StatsInterval)
	channels, err := conf.ParseChannels()
	require.NoError(t, err)
	require.Equal(t, []link.Channel{link.ChannelFDCAN1, link.ChannelUART, link.ChannelH7}, channels)
	require.Equal(t, link.Config{FrameSize: 256, MaxPayload: 64}, conf.LinkConfig())
}

func TestLoadFileErrors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"syntax", `bus_url = `},
		{"unknown key", `bus = "tcp://a:1"`},
		{"duration", `stats_interval = "soon"`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var conf Config
			require.Error(t, conf.LoadFile(writeFile(t, tc.content)))
		})
	}
	var conf Config
	require.Error(t, conf.LoadFile(filepath.Join(t.TempDir(), "missing.toml")))
}

func TestValidate(t *testing.T) {
	conf := NewConfig()
	conf.Channels = ""
	require.NoError(t, conf.Validate())
	conf.FrameSize = 4
	require.Error(t, conf.Validate())
	conf.FrameSize = 64
	conf.MaxPayload = -1
	require.Error(t, conf.Validate())
	conf.MaxPayload = 0
	conf.Channels = "adc,0"
	err := conf.Validate()
	require.True(t, errors.Is(err, link.ErrInvalidChannel))
}

func TestMQTTClientID(t *testing.T) {
	conf := Config{ClientID: "fixed"}
	require.Equal(t, "fixed", conf.MQTTClientID("h7linkd"))
	conf.ClientID = ""
	id := conf.MQTTClientID("h7linkd")
	require.True(t, strings.HasPrefix(id, "h7linkd:"))
	require.True(t, len(id) > len("h7linkd:"))
}

func TestNewTransfererTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		stream.Serve(conn, 8, func(in []byte) []byte { return in[:2] })
	}()

	conf := Config{BusURL: "tcp://" + ln.Addr().String()}
	tr, closer, err := conf.NewTransferer()
	require.NoError(t, err)
	defer closer.Close()
	rx := make([]byte, 8)
	require.NoError(t, tr.Transfer([]byte{1, 2, 3, 4, 5, 6, 7, 8}, rx))
	require.Equal(t, []byte{1, 2, 0, 0, 0, 0, 0, 0}, rx)
}

func TestNewTransfererWebsocket(t *testing.T) {
	srv := httptest.NewServer(websocket.Handler(8, func(in []byte) []byte { return in }))
	defer srv.Close()

	conf := Config{BusURL: "ws" + strings.TrimPrefix(srv.URL, "http") + "/link"}
	tr, closer, err := conf.NewTransferer()
	require.NoError(t, err)
	defer closer.Close()
	rx := make([]byte, 8)
	require.NoError(t, tr.Transfer([]byte("abcdefgh"), rx))
	require.Equal(t, []byte("abcdefgh"), rx)
}

func TestNewTransfererErrors(t *testing.T) {
	for _, u := range []string{"ftp://host/x", "spidev://", "::bad"} {
		_, _, err := (&Config{BusURL: u}).NewTransferer()
		require.Error(t, err, u)
	}
}

func TestNewEnv(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		stream.Serve(conn, link.DefaultFrameSize, func(in []byte) []byte { return in })
	}()

	conf := &Config{
		BusURL:      "tcp://" + ln.Addr().String(),
		IRQ:         "poll:10ms",
		FrameSize:   link.DefaultFrameSize,
		CaptureFile: filepath.Join(t.TempDir(), "frames.cap"),
	}
	env, err := conf.NewEnv("test")
	require.NoError(t, err)
	require.Nil(t, env.Bridge)
	require.IsType(t, &irq.Ticker{}, env.Source)
	require.Len(t, env.Runnables(), 1)

	require.True(t, env.StartCapture())
	require.NoError(t, env.Engine.SendSync(link.ChannelUART, 1, []byte("x")))
	require.Equal(t, uint64(1), env.Capture.Count())
	require.NoError(t, env.Close())

	info, err := os.Stat(conf.CaptureFile)
	require.NoError(t, err)
	require.NotZero(t, info.Size())
}
