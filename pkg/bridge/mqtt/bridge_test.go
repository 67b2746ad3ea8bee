package mqtt

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/h7link/pkg/l0/bus"
	"github.com/robotalks/h7link/pkg/l0/link"
	"github.com/robotalks/h7link/pkg/msgs"
)

type published struct {
	topic   string
	payload []byte
	retain  bool
}

type fakeBroker struct {
	lock sync.Mutex
	pubs []published
	subs map[*fakeSub]bool
}

type fakeSub struct {
	broker  *fakeBroker
	topic   string
	handler Handler
}

func (s *fakeSub) Close() error {
	s.broker.lock.Lock()
	delete(s.broker.subs, s)
	s.broker.lock.Unlock()
	return nil
}

func (b *fakeBroker) Publish(topic string, payload []byte, retain bool) error {
	b.lock.Lock()
	b.pubs = append(b.pubs, published{topic: topic, payload: payload, retain: retain})
	b.lock.Unlock()
	return nil
}

func (b *fakeBroker) Subscribe(topic string, handler Handler) (io.Closer, error) {
	sub := &fakeSub{broker: b, topic: topic, handler: handler}
	b.lock.Lock()
	if b.subs == nil {
		b.subs = make(map[*fakeSub]bool)
	}
	b.subs[sub] = true
	b.lock.Unlock()
	return sub, nil
}

func (b *fakeBroker) deliver(topic string, payload []byte) {
	var handlers []Handler
	b.lock.Lock()
	for sub := range b.subs {
		if MatchTopic(topic, sub.topic) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.lock.Unlock()
	for _, h := range handlers {
		h(topic, payload)
	}
}

func (b *fakeBroker) history() []published {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]published(nil), b.pubs...)
}

func (b *fakeBroker) subscribed() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subs)
}

func (b *fakeBroker) packets(t *testing.T) []*link.Packet {
	var pkts []*link.Packet
	for _, pub := range b.history() {
		ch, err := ParseRxTopic(pub.topic)
		if err != nil {
			continue
		}
		m, err := msgs.DecodePacket(pub.payload)
		require.NoError(t, err)
		pkt, err := m.LinkPacket()
		require.NoError(t, err)
		require.Equal(t, ch, pkt.Channel)
		pkts = append(pkts, pkt)
	}
	return pkts
}

var echoBus = bus.TransferFunc(func(tx, rx []byte) error {
	copy(rx, tx)
	return nil
})

func request(t *testing.T, opcode uint32, data []byte, syncSend bool) []byte {
	payload, err := msgs.Encode(&msgs.SendRequest{Opcode: opcode, Data: data, Sync: syncSend})
	require.NoError(t, err)
	return payload
}

func TestTopics(t *testing.T) {
	require.Equal(t, "fdcan1/rx", RxTopic(link.ChannelFDCAN1))
	require.Equal(t, "8/tx", TxTopic(link.Channel(8)))

	ch, err := ParseTxTopic("uart/tx")
	require.NoError(t, err)
	require.Equal(t, link.ChannelUART, ch)
	ch, err = ParseRxTopic("12/rx")
	require.NoError(t, err)
	require.Equal(t, link.Channel(12), ch)

	for _, topic := range []string{"uart/rx", "a/uart/tx", "uart", "/tx"} {
		_, err = ParseTxTopic(topic)
		require.Error(t, err, topic)
	}
	_, err = ParseTxTopic("0/tx")
	require.True(t, errors.Is(err, link.ErrInvalidChannel))
	_, err = ParseTxTopic("uart/rx")
	require.True(t, errors.Is(err, ErrUnknownTopic))
}

func TestBridgeRequests(t *testing.T) {
	broker := &fakeBroker{}
	b := New(link.NewEngine(echoBus), broker, Config{Channels: []link.Channel{link.ChannelUART, link.ChannelGPIO}})
	require.NoError(t, b.Attach())
	defer b.Detach()

	require.NoError(t, b.HandleRequest("uart/tx", request(t, 1, []byte("a"), false)))
	require.Empty(t, broker.packets(t))
	require.NoError(t, b.HandleRequest("gpio/tx", request(t, 2, []byte("b"), true)))
	require.Equal(t, []*link.Packet{
		{Channel: link.ChannelUART, Opcode: 1, Data: []byte("a")},
		{Channel: link.ChannelGPIO, Opcode: 2, Data: []byte("b")},
	}, broker.packets(t))

	// channels not exposed are dropped
	require.NoError(t, b.HandleRequest("adc/tx", request(t, 3, []byte("c"), true)))
	require.Len(t, broker.packets(t), 2)

	err := b.HandleRequest("uart/tx", request(t, 1, make([]byte, link.MaxPayload(link.DefaultFrameSize)+1), true))
	require.True(t, errors.Is(err, link.ErrPayloadTooLarge))
	err = b.HandleRequest("uart/tx", request(t, 0x100, nil, true))
	require.True(t, errors.Is(err, msgs.ErrOutOfRange))
	require.Error(t, b.HandleRequest("uart/tx", []byte{0xff}))
	require.Error(t, b.HandleRequest("stats", nil))
}

func TestBridgeDeferredOverflow(t *testing.T) {
	broker := &fakeBroker{}
	e := link.NewEngine(echoBus)
	b := New(e, broker, Config{Channels: []link.Channel{link.ChannelUART}})
	require.NoError(t, b.Attach())
	defer b.Detach()

	require.NoError(t, b.HandleRequest("uart/tx", request(t, 1, make([]byte, 200), false)))
	require.NoError(t, b.HandleRequest("uart/tx", request(t, 2, make([]byte, 100), false)))
	pkts := broker.packets(t)
	require.Len(t, pkts, 1)
	require.Equal(t, byte(1), pkts[0].Opcode)

	require.NoError(t, e.Flush())
	pkts = broker.packets(t)
	require.Len(t, pkts, 2)
	require.Equal(t, byte(2), pkts[1].Opcode)
}

func TestBridgeDetach(t *testing.T) {
	e := link.NewEngine(echoBus)
	b := New(e, &fakeBroker{}, Config{})
	require.NoError(t, b.Attach())
	for _, ch := range link.Channels() {
		require.True(t, e.Registered(ch))
	}
	// a channel taken over after Attach survives Detach
	_, err := e.Register(link.ChannelUI, link.HandlePacketFunc(func(context.Context, *link.Packet) {}))
	require.NoError(t, err)
	b.Detach()
	require.True(t, e.Registered(link.ChannelUI))
	require.False(t, e.Registered(link.ChannelUART))
}

func TestBridgeRun(t *testing.T) {
	broker := &fakeBroker{}
	e := link.NewEngine(echoBus)
	b := New(e, broker, Config{StatsInterval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	waitFor(t, func() bool { return len(broker.history()) > 0 })
	require.Equal(t, 2, broker.subscribed())
	require.Equal(t, published{topic: StatusTopic, payload: []byte(StatusOnline), retain: true}, broker.history()[0])

	broker.deliver("fdcan2/tx", request(t, 4, []byte{4}, false))
	broker.deliver(FlushTopic, nil)
	require.Equal(t, []*link.Packet{{Channel: link.ChannelFDCAN2, Opcode: 4, Data: []byte{4}}}, broker.packets(t))

	waitFor(t, func() bool {
		for _, pub := range broker.history() {
			if pub.topic == StatsTopic {
				return true
			}
		}
		return false
	})

	cancel()
	require.Equal(t, context.Canceled, <-done)
	require.Zero(t, broker.subscribed())
	pubs := broker.history()
	require.Equal(t, published{topic: StatusTopic, retain: true}, pubs[len(pubs)-1])
	require.False(t, e.Registered(link.ChannelFDCAN2))
}

func waitFor(t *testing.T, cond func() bool) {
	for deadline := time.Now().Add(time.Second); !cond(); {
		require.True(t, time.Now().Before(deadline), "condition not met")
		time.Sleep(time.Millisecond)
	}
}
