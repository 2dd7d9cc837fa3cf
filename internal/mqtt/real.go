package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/galvo-ctrl/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// client is the part of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed in order on reconnect.
type RealPublisher struct {
	client client
	events string
	system string

	mu  sync.Mutex // serializes publishes with buffer replay
	buf *ringBuffer
}

// NewRealPublisher creates a publisher for device on broker. A broker that
// cannot be reached within the connect timeout is not an error; the client
// keeps retrying in the background and buffers until it connects.
func NewRealPublisher(broker, device string) *RealPublisher {
	p := &RealPublisher{
		events: EventsTopic(device),
		system: SystemTopic(device),
		buf:    newRingBuffer(DefaultBufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("galvo-ctrl-" + device).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.system, string(WillPayload()), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			log.Printf("mqtt: connected to %s", broker)
			p.replay()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	c := paho.NewClient(opts)
	p.client = c

	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Printf("mqtt: %s not reachable yet, retrying in background", broker)
	} else if err := token.Error(); err != nil {
		log.Printf("mqtt: connect to %s: %v", broker, err)
	}
	return p
}

func newPublisher(c client, device string, bufSize int) *RealPublisher {
	return &RealPublisher{
		client: c,
		events: EventsTopic(device),
		system: SystemTopic(device),
		buf:    newRingBuffer(bufSize),
	}
}

// Publish sends a peripheral event (QoS 0, not retained).
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.events, payload: payload})
}

// PublishSystem sends a system lifecycle event (QoS 1).
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: p.system, payload: payload, qos: 1, retained: event.Retained})
}

var errBuffered = errors.New("not connected, message buffered")

func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		return errBuffered
	}
	// The connection can be up before the connect handler has replayed;
	// older messages go first.
	if p.buf.len() > 0 {
		p.replayLocked()
		if p.buf.len() > 0 {
			p.buf.push(msg)
			return errBuffered
		}
	}
	if err := p.send(msg); err != nil {
		p.buf.push(msg)
		return err
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

// replay sends buffered messages oldest first. Anything that fails goes
// back into the buffer behind what is still pending.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replayLocked()
}

func (p *RealPublisher) replayLocked() {
	msgs := p.buf.drain()
	if len(msgs) == 0 {
		return
	}
	log.Printf("mqtt: replaying %d buffered messages", len(msgs))
	for i, msg := range msgs {
		if err := p.send(msg); err != nil {
			log.Printf("mqtt: replay stopped: %v", err)
			for _, rest := range msgs[i:] {
				p.buf.push(rest)
			}
			return
		}
	}
}

// Buffered returns how many messages are waiting for the broker.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
