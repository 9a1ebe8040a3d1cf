package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/caspian-yx/socket-chat-app/internal/infra/config"
)

// Producer wraps a sarama async producer. Publishing is fire-and-forget;
// broker errors surface on a drained channel and are logged, never blocking
// chat traffic.
type Producer struct {
	producer sarama.AsyncProducer
	logger   *zap.Logger
	cfg      config.KafkaSettings
	errChan  chan error
	done     chan struct{}
}

// NewProducer connects the async producer and starts its error drain.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_5_0_0

	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Flush.Messages = 100
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	saramaConfig.Metadata.Retry.Max = 3
	saramaConfig.Metadata.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		logger:   logger,
		cfg:      cfg,
		errChan:  make(chan error, 256),
		done:     make(chan struct{}),
	}
	go p.drainErrors()

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix))
	return p, nil
}

// drainErrors keeps sarama's error channel from backing up. Errors are
// logged and mirrored onto errChan for external monitoring; a full mirror
// channel drops.
func (p *Producer) drainErrors() {
	for {
		select {
		case err := <-p.producer.Errors():
			if err == nil {
				continue
			}
			p.logger.Error("kafka publish failed",
				zap.Error(err.Err),
				zap.String("topic", err.Msg.Topic))
			select {
			case p.errChan <- err.Err:
			default:
			}
		case <-p.done:
			return
		}
	}
}

// Producer exposes the underlying sarama producer for message input.
func (p *Producer) Producer() sarama.AsyncProducer {
	return p.producer
}

// Errors is the mirrored broker-error channel.
func (p *Producer) Errors() <-chan error {
	return p.errChan
}

// Close flushes pending messages and stops the error drain.
func (p *Producer) Close() error {
	close(p.done)
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	close(p.errChan)
	return nil
}

// TopicName prefixes the event type with the configured topic namespace.
func (p *Producer) TopicName(eventType string) string {
	if p.cfg.TopicPrefix == "" {
		return eventType
	}
	prefix := p.cfg.TopicPrefix + "."
	if strings.HasPrefix(eventType, prefix) {
		return eventType
	}
	return prefix + eventType
}
