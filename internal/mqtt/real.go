package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/water-filter/internal/config"
	"github.com/sweeney/water-filter/internal/engine"
)

const (
	publishTimeout = 5 * time.Second
	commandBacklog = 16
)

// RealPublisher publishes to an actual MQTT broker and receives commands on
// the control topic. Messages published while disconnected are buffered and
// replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics config.MQTTConfig

	mu  sync.Mutex
	buf *ringBuffer

	commands chan ControlMessage
}

// NewRealPublisher creates a publisher for cfg.Broker. Connection happens in
// the background with retries, so the daemon starts even if the broker is down.
func NewRealPublisher(cfg config.MQTTConfig) *RealPublisher {
	p := &RealPublisher{
		topics:   cfg,
		buf:      newRingBuffer(cfg.BufferSize),
		commands: make(chan ControlMessage, commandBacklog),
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "water-filter-" + uuid.NewString()[:8]
	}

	will, _ := FormatStatus(StatusMessage{Timestamp: time.Now(), Status: StatusOffline, Message: "connection lost"})

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(cfg.TopicStatus, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	log.Printf("mqtt: connecting to %s as %s", cfg.Broker, clientID)
	return p
}

// onConnect runs on every (re)connect: subscribe, announce, replay.
func (p *RealPublisher) onConnect(c paho.Client) {
	log.Printf("mqtt: connected")

	token := c.Subscribe(p.topics.TopicControl, 1, func(_ paho.Client, m paho.Message) {
		p.handleControl(m.Payload())
	})
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		log.Printf("mqtt: subscribe %s: %v", p.topics.TopicControl, token.Error())
	}

	online, _ := FormatStatus(StatusMessage{Timestamp: time.Now(), Status: StatusOnline, Message: "controller connected"})
	c.Publish(p.topics.TopicStatus, 1, true, online)

	p.mu.Lock()
	msgs, dropped := p.buf.drainAll()
	p.mu.Unlock()
	if len(msgs) > 0 {
		log.Printf("mqtt: replaying %d buffered messages (%d dropped)", len(msgs), dropped)
	}
	for _, m := range msgs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

func (p *RealPublisher) handleControl(payload []byte) {
	msg, err := ParseControl(payload, time.Now())
	if err != nil {
		log.Printf("mqtt: %v", err)
		return
	}
	select {
	case p.commands <- msg:
	default:
		log.Printf("mqtt: command backlog full, dropping %q", msg.Command)
	}
}

// Commands returns the channel of decoded control messages.
func (p *RealPublisher) Commands() <-chan ControlMessage {
	return p.commands
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// publish sends or buffers one message.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishTelemetry sends a snapshot to the data topic.
func (p *RealPublisher) PublishTelemetry(snap engine.TelemetrySnapshot) error {
	payload, err := FormatTelemetry(snap)
	if err != nil {
		return fmt.Errorf("format telemetry: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(p.topics.TopicData, 0, false, payload)
}

// PublishStatus sends a status message.
func (p *RealPublisher) PublishStatus(msg StatusMessage) error {
	payload, err := FormatStatus(msg)
	if err != nil {
		return fmt.Errorf("format status: %w", err)
	}
	return p.publish(p.topics.TopicStatus, 1, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) so shutdown events are delivered
	return p.publish(p.topics.TopicSystem, 1, event.Retained, payload)
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
