package mqtt

import (
	"fmt"
	"log"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Subscriber delivers messages from one topic to a handler. It resubscribes
// after every reconnect.
type Subscriber struct {
	client paho.Client
}

// Subscribe connects to broker and calls handle with the payload of every
// message on topic. handle runs on paho's delivery goroutine.
func Subscribe(broker, clientID, topic string, handle func(payload []byte)) (*Subscriber, error) {
	onMessage := func(_ paho.Client, m paho.Message) {
		handle(m.Payload())
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetOnConnectHandler(func(c paho.Client) {
			token := c.Subscribe(topic, 1, onMessage)
			if token.WaitTimeout(publishTimeout) && token.Error() == nil {
				log.Printf("mqtt: subscribed to %s", topic)
				return
			}
			log.Printf("mqtt: subscribe to %s failed: %v", topic, token.Error())
		})

	c := paho.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	return &Subscriber{client: c}, nil
}

// Close disconnects from the broker.
func (s *Subscriber) Close() {
	s.client.Disconnect(250)
}
