package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/benmeehan/beacon-agent/internal/constants"
	"github.com/benmeehan/beacon-agent/internal/models"
	"github.com/benmeehan/beacon-agent/pkg/mqtt"
	"github.com/rs/zerolog"
)

// Options configures MQTTPublisher.
type Options struct {
	// Topics maps each message kind to its topic. Kinds without a topic
	// cannot be published.
	Topics   map[models.Kind]string
	QOS      byte
	Retained bool
	Timeout  time.Duration
}

// MQTTPublisher publishes messages and waits for the broker to acknowledge
// them (or for the QoS 0 write to complete).
type MQTTPublisher struct {
	client mqtt.MQTTClient
	opts   Options
	logger zerolog.Logger
}

// NewMQTTPublisher creates a publisher over an initialized client.
func NewMQTTPublisher(client mqtt.MQTTClient, opts Options, logger zerolog.Logger) *MQTTPublisher {
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultPublishTimeout
	}
	return &MQTTPublisher{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// Publish encodes msg and sends it to the topic for its kind. It blocks until
// the send completes, the publish timeout elapses or ctx is done.
func (p *MQTTPublisher) Publish(ctx context.Context, msg models.Message) error {
	topic := p.opts.Topics[msg.Kind()]
	if topic == "" {
		return fmt.Errorf("no topic configured for %s messages", msg.Kind())
	}

	payload, err := msg.Wire()
	if err != nil {
		p.logger.Error().Err(err).Str("kind", string(msg.Kind())).Msg("Failed to serialize message")
		return fmt.Errorf("encode %s message: %w", msg.Kind(), err)
	}

	timeout := p.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	token := p.client.Publish(topic, p.opts.QOS, p.opts.Retained, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out publishing to %s after %s", topic, timeout)
	}
	if err := token.Error(); err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish message")
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug().
		Str("topic", topic).
		Str("kind", string(msg.Kind())).
		Int("bytes", len(payload)).
		Msg("Message published successfully")
	return nil
}
