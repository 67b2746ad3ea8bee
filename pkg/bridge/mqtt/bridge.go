// Package mqtt bridges link channels to an MQTT broker, so processes other
// than the one owning the bus can talk to the co-processor.
//
// Topics, relative to the broker URL path:
//
//	<channel>/rx  inbound sub-packets of a channel, msgs.Packet
//	<channel>/tx  send requests to a channel, msgs.SendRequest
//	flush         performs a transfer, payload ignored
//	stats         engine counters in JSON, retained
//	status        "online" while the bridge runs, retained
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/h7link/pkg/l0/link"
	"github.com/robotalks/h7link/pkg/msgs"
)

// Fixed topics.
const (
	FlushTopic  = "flush"
	StatsTopic  = "stats"
	StatusTopic = "status"

	rxSuffix = "/rx"
	txSuffix = "/tx"
)

// StatusOnline is the retained payload of StatusTopic.
const StatusOnline = "online"

var (
	// ErrUnknownTopic indicates the topic doesn't address a channel.
	ErrUnknownTopic = errors.New("unknown topic")
)

// RxTopic is where inbound sub-packets of a channel are published.
func RxTopic(ch link.Channel) string {
	return ch.String() + rxSuffix
}

// TxTopic is where send requests to a channel are accepted.
func TxTopic(ch link.Channel) string {
	return ch.String() + txSuffix
}

// ParseTxTopic extracts the channel from a TxTopic.
func ParseTxTopic(topic string) (link.Channel, error) {
	name := strings.TrimSuffix(topic, txSuffix)
	if name == topic || strings.Contains(name, "/") {
		return link.ChannelNone, fmt.Errorf("%q: %w", topic, ErrUnknownTopic)
	}
	ch, err := link.ParseChannel(name)
	if err != nil {
		return link.ChannelNone, fmt.Errorf("%q: %w", topic, err)
	}
	return ch, nil
}

// ParseRxTopic extracts the channel from an RxTopic.
func ParseRxTopic(topic string) (link.Channel, error) {
	name := strings.TrimSuffix(topic, rxSuffix)
	if name == topic || strings.Contains(name, "/") {
		return link.ChannelNone, fmt.Errorf("%q: %w", topic, ErrUnknownTopic)
	}
	ch, err := link.ParseChannel(name)
	if err != nil {
		return link.ChannelNone, fmt.Errorf("%q: %w", topic, err)
	}
	return ch, nil
}

// Broker is the pub/sub surface the bridge runs on. *Queue implements it.
type Broker interface {
	Publish(topic string, payload []byte, retain bool) error
	Subscribe(topic string, handler Handler) (io.Closer, error)
}

// NewBrokerQueue creates a Queue whose will clears StatusTopic.
func NewBrokerQueue(brokerURL, clientID string) (*Queue, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL, clientID)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+StatusTopic, nil, 1, true)
	return NewQueue(opts, topicPrefix), nil
}

// Config configures a Bridge.
type Config struct {
	// Channels to expose, all named channels if empty.
	Channels []link.Channel
	// StatsInterval is the period to publish stats, disabled if 0.
	StatsInterval time.Duration
}

// Bridge publishes inbound packets and accepts send requests.
type Bridge struct {
	Engine *link.Engine
	Broker Broker
	Config Config

	regs []*link.Registration
}

// New creates a Bridge.
func New(engine *link.Engine, broker Broker, conf Config) *Bridge {
	return &Bridge{Engine: engine, Broker: broker, Config: conf}
}

// Attach registers a handler on each exposed channel.
func (b *Bridge) Attach() error {
	channels := b.Config.Channels
	if len(channels) == 0 {
		channels = link.Channels()
	}
	for _, ch := range channels {
		reg, err := b.Engine.Register(ch, link.HandlePacketFunc(b.publishPacket))
		if err != nil {
			b.Detach()
			return fmt.Errorf("register channel %s: %w", ch, err)
		}
		b.regs = append(b.regs, reg)
	}
	return nil
}

// Detach unregisters all handlers. Channels re-registered by others since
// Attach are left untouched.
func (b *Bridge) Detach() {
	for _, reg := range b.regs {
		reg.Close()
	}
	b.regs = nil
}

func (b *Bridge) publishPacket(ctx context.Context, pkt *link.Packet) {
	data, err := msgs.Encode(msgs.PacketFrom(pkt))
	if err != nil {
		glog.Errorf("encode packet channel %s: %v", pkt.Channel, err)
		return
	}
	topic := RxTopic(pkt.Channel)
	glog.V(2).Infof("PUB %q opcode %d size %d", topic, pkt.Opcode, len(pkt.Data))
	if err := b.Broker.Publish(topic, data, false); err != nil {
		glog.Errorf("publish %q: %v", topic, err)
	}
}

// HandleRequest processes a message received on a TxTopic.
// Deferred requests which don't fit the pending frame flush it first.
func (b *Bridge) HandleRequest(topic string, payload []byte) error {
	ch, err := ParseTxTopic(topic)
	if err != nil {
		return err
	}
	req, err := msgs.DecodeSendRequest(payload)
	if err != nil {
		return fmt.Errorf("decode %q: %w", topic, err)
	}
	opcode, err := req.OpcodeByte()
	if err != nil {
		return err
	}
	if max := link.MaxPayload(b.Engine.FrameSize()); len(req.Data) > max {
		return fmt.Errorf("channel %s: %d bytes exceeds %d: %w", ch, len(req.Data), max, link.ErrPayloadTooLarge)
	}
	if req.Sync {
		return b.Engine.SendSync(ch, opcode, req.Data)
	}
	err = b.Engine.SendDeferred(ch, opcode, req.Data)
	if err == link.ErrNoSpace {
		if err = b.Engine.Flush(); err != nil {
			return err
		}
		err = b.Engine.SendDeferred(ch, opcode, req.Data)
	}
	return err
}

// PublishStats publishes the engine counters.
func (b *Bridge) PublishStats() error {
	data, err := json.Marshal(b.Engine.Stats())
	if err != nil {
		return err
	}
	return b.Broker.Publish(StatsTopic, data, true)
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Attach(); err != nil {
		return err
	}
	defer b.Detach()

	txSub, err := b.Broker.Subscribe("+"+txSuffix, func(topic string, payload []byte) {
		if err := b.HandleRequest(topic, payload); err != nil {
			glog.Errorf("request %q: %v", topic, err)
		}
	})
	if err != nil {
		return err
	}
	defer txSub.Close()
	flushSub, err := b.Broker.Subscribe(FlushTopic, func(string, []byte) {
		if err := b.Engine.Flush(); err != nil {
			glog.Errorf("flush: %v", err)
		}
	})
	if err != nil {
		return err
	}
	defer flushSub.Close()

	b.Broker.Publish(StatusTopic, []byte(StatusOnline), true)
	defer b.Broker.Publish(StatusTopic, nil, true)

	var tick <-chan time.Time
	if b.Config.StatsInterval > 0 {
		ticker := time.NewTicker(b.Config.StatsInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			if err := b.PublishStats(); err != nil {
				glog.Errorf("publish stats: %v", err)
			}
		}
	}
}
