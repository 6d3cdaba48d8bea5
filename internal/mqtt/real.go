package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/pocketgadget/gadgetd/internal/logger"
)

// DefaultBufferSize is how many messages are kept while disconnected.
const DefaultBufferSize = 100

const publishTimeout = 5 * time.Second

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Prefix     string
	BufferSize int
	Log        *logger.Logger
	// OnConnectionChange is called from paho's goroutines on connect and loss.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are buffered and replayed, oldest first, on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	log    *logger.Logger
	notify func(bool)

	mu  sync.Mutex
	buf *outbox
}

// NewRealPublisher creates a publisher and starts connecting in the
// background. It never fails on an unreachable broker: paho keeps retrying.
func NewRealPublisher(opts Options) *RealPublisher {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	p := &RealPublisher{
		topics: TopicsFor(opts.Prefix),
		log:    opts.Log,
		notify: opts.OnConnectionChange,
		buf:    newOutbox(opts.BufferSize, opts.Log),
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.topics.System, WillPayload, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(co)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.log.Infof("connected")
	if p.notify != nil {
		p.notify(true)
	}

	p.mu.Lock()
	pending := p.buf.take()
	p.mu.Unlock()
	if len(pending) > 0 {
		p.log.Infof("replaying %d buffered messages", len(pending))
	}
	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}

	payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventReconnected})
	c.Publish(p.topics.System, 1, false, payload)
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.log.Warnf("connection lost: %v", err)
	if p.notify != nil {
		p.notify(false)
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

func (p *RealPublisher) publish(msg message) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// PublishPower sends a power event to the MQTT broker.
func (p *RealPublisher) PublishPower(event PowerEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(message{topic: p.topics.Power, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 so STARTUP and SHUTDOWN survive a flaky link
	return p.publish(message{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

// Buffered reports how many messages wait for a reconnect.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
