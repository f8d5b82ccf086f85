package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/magic-clock/internal/logic"
)

// DefaultBufferSize is the number of messages kept while the broker is away.
const DefaultBufferSize = 256

// Options configures a RealPublisher.
type Options struct {
	ClientID   string
	BufferSize int
	// OnCommand, if set, subscribes to TopicCommand.
	OnCommand CommandHandler
	Logger    *slog.Logger
	// Now is used for LWT and RECONNECTED timestamps. Defaults to time.Now.
	Now func() time.Time
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	opts   Options

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool
	connects  int
}

// NewRealPublisher creates a publisher for the given broker. It waits briefly
// for the first connection; if the broker is unreachable the publisher keeps
// retrying in the background and buffers messages meanwhile.
func NewRealPublisher(broker string, opts Options) (*RealPublisher, error) {
	if opts.ClientID == "" {
		opts.ClientID = "magic-clock"
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	p := &RealPublisher{
		opts: opts,
		buf:  newRingBuffer(opts.BufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: opts.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	co := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(func(c paho.Client) { p.onConnect(c) }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.onConnectionLost(err) })

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		opts.Logger.Warn("mqtt: broker not reachable yet, buffering", slog.String("broker", broker))
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	p.connects++
	reconnect := p.connects > 1
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if p.opts.OnCommand != nil {
		token := c.Subscribe(TopicCommand, 1, commandMessageHandler(p.opts.OnCommand, p.opts.Logger))
		go watchSubscribe(token, p.opts.Logger)
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.opts.Now(), Event: "RECONNECTED"})
		pending = append(pending, bufferedMsg{topic: TopicSystem, payload: payload, qos: 1})
	}

	if len(pending) > 0 {
		p.opts.Logger.Info("mqtt: replaying buffered messages", slog.Int("count", len(pending)))
	}
	for _, m := range pending {
		// Fire and forget; waiting here would block paho's connect callback.
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// watchSubscribe reports a rejected command subscription. It runs off the
// connect callback, which must not block.
func watchSubscribe(token paho.Token, logger *slog.Logger) bool {
	token.Wait()
	if err := token.Error(); err != nil {
		logger.Warn("mqtt: command subscription failed, remote control is off",
			slog.String("topic", TopicCommand), slog.Any("error", err))
		return false
	}
	logger.Debug("mqtt: subscribed", slog.String("topic", TopicCommand))
	return true
}

func (p *RealPublisher) onConnectionLost(err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.opts.Logger.Warn("mqtt: connection lost", slog.Any("error", err))
}

// commandMessageHandler decodes command payloads and hands them to fn.
func commandMessageHandler(fn CommandHandler, logger *slog.Logger) paho.MessageHandler {
	return func(_ paho.Client, m paho.Message) {
		cmd, err := ParseCommand(m.Payload())
		if err != nil {
			logger.Warn("mqtt: bad command", slog.String("topic", m.Topic()), slog.Any("error", err))
			return
		}
		fn(cmd)
	}
}

func (p *RealPublisher) send(m bufferedMsg) error {
	p.mu.Lock()
	if !p.connected {
		if p.buf.push(m) && p.buf.dropped == 1 {
			p.opts.Logger.Warn("mqtt: buffer full, dropping oldest", slog.Int("capacity", len(p.buf.buf)))
		}
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Publish sends a clock event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) so lifecycle events are not lost.
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Buffered returns the number of messages waiting for a connection.
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
