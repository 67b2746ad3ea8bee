package main

import (
	"bytes"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/h7link/pkg/bridge/mqtt"
	"github.com/robotalks/h7link/pkg/env"
	"github.com/robotalks/h7link/pkg/l0/link"
	"github.com/robotalks/h7link/pkg/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/h7/"
	showTx  bool
)

func init() {
	if val := os.Getenv("H7_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.BoolVar(&showTx, "tx", showTx, "Also show send requests.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL, "h7mon:"+env.MachineID())
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		switch {
		case topic == mqtt.StatusTopic || topic == mqtt.StatsTopic:
			log.Printf("%s: %s", topic, string(payload))
		case strings.HasSuffix(topic, "/rx"):
			m, err := msgs.DecodePacket(payload)
			if err != nil {
				log.Printf("%s: bad packet: %v", topic, err)
				return
			}
			pkt, err := m.LinkPacket()
			if err != nil {
				log.Printf("%s: %v", topic, err)
				return
			}
			var buf bytes.Buffer
			link.FormatPacket(&buf, pkt)
			log.Printf("%s: %s", topic, strings.TrimSpace(buf.String()))
		case strings.HasSuffix(topic, "/tx") && showTx:
			req, err := msgs.DecodeSendRequest(payload)
			if err != nil {
				log.Printf("%s: bad request: %v", topic, err)
				return
			}
			log.Printf("%s: %s", topic, req.String())
		}
	}))
	token := q.Connect()
	if token.Wait(); token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
