package transmitter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kscrap/kscrap/pkg/config"
	"github.com/kscrap/kscrap/pkg/item"
	"github.com/kscrap/kscrap/pkg/kscraperrors"
	"github.com/kscrap/kscrap/pkg/logger"
	"github.com/kscrap/kscrap/pkg/metrics"
)

// Payload is the JSON value of each Kafka message.
type Payload struct {
	ID     string                 `json:"id"`
	Type   string                 `json:"type"`
	Fields map[string]interface{} `json:"fields"`
	SentAt time.Time              `json:"sent_at"`
}

// Kafka publishes items to a topic with a synchronous producer.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewKafka connects a producer to the configured brokers.
func NewKafka(cfg config.KafkaConfig, l *zap.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, kscraperrors.New(kscraperrors.ErrorTypeConfig, "kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, kscraperrors.New(kscraperrors.ErrorTypeConfig, "kafka topic is required")
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, BuildSaramaConfig(cfg))
	if err != nil {
		return nil, kscraperrors.Wrap(err, kscraperrors.ErrorTypeTransport, "failed to create kafka producer").
			WithDetail("brokers", strings.Join(cfg.Brokers, ","))
	}
	return NewKafkaWithProducer(producer, cfg.Topic, l), nil
}

// NewKafkaWithProducer publishes through an existing producer.
func NewKafkaWithProducer(producer sarama.SyncProducer, topic string, l *zap.Logger) *Kafka {
	return &Kafka{
		producer: producer,
		topic:    topic,
		logger:   logger.Or(l).Named("kafka").With(zap.String("topic", topic)),
	}
}

// BuildSaramaConfig builds the producer configuration.
func BuildSaramaConfig(cfg config.KafkaConfig) *sarama.Config {
	conf := sarama.NewConfig()
	if cfg.ClientID != "" {
		conf.ClientID = cfg.ClientID
	}

	switch cfg.RequiredAcks {
	case "none", "0":
		conf.Producer.RequiredAcks = sarama.NoResponse
	case "leader", "1":
		conf.Producer.RequiredAcks = sarama.WaitForLocal
	default:
		conf.Producer.RequiredAcks = sarama.WaitForAll
	}

	switch cfg.Compression {
	case "gzip":
		conf.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		conf.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		conf.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		conf.Producer.Compression = sarama.CompressionZSTD
		// zstd needs at least this protocol version.
		conf.Version = sarama.V2_1_0_0
	default:
		conf.Producer.Compression = sarama.CompressionNone
	}

	if cfg.Timeout > 0 {
		conf.Producer.Timeout = cfg.Timeout
		conf.Net.DialTimeout = cfg.Timeout
	}
	// Required by the sync producer.
	conf.Producer.Return.Successes = true
	conf.Producer.Return.Errors = true
	return conf
}

// Transmit publishes it as a JSON payload keyed by a fresh message ID.
func (k *Kafka) Transmit(ctx context.Context, it item.Item) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return kscraperrors.New(kscraperrors.ErrorTypeTransport, "kafka transmitter is closed")
	}
	if err := ctx.Err(); err != nil {
		return kscraperrors.Wrap(err, kscraperrors.ErrorTypeTransport, "item not delivered")
	}

	msg, err := k.buildProducerMessage(it)
	if err != nil {
		return err
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		metrics.ItemsTransmitted.WithLabelValues("kafka", "error").Inc()
		return kscraperrors.Wrap(err, kscraperrors.ErrorTypeTransport, "failed to publish item").
			WithDetail("topic", k.topic)
	}

	metrics.ItemsTransmitted.WithLabelValues("kafka", "success").Inc()
	k.logger.Debug("item published",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (k *Kafka) buildProducerMessage(it item.Item) (*sarama.ProducerMessage, error) {
	payload := Payload{
		ID:     uuid.NewString(),
		Type:   it.Schema().Name(),
		Fields: item.TypedValues(it),
		SentAt: time.Now().UTC(),
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return nil, kscraperrors.Wrap(err, kscraperrors.ErrorTypeData, "failed to encode item")
	}

	return &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(payload.ID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("item-type"), Value: []byte(payload.Type)},
			{Key: []byte("content-type"), Value: []byte("application/json")},
		},
		Timestamp: payload.SentAt,
	}, nil
}

// Closed implements Transmitter
func (k *Kafka) Closed() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.closed
}

// Close closes the producer.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	if err := k.producer.Close(); err != nil {
		return kscraperrors.Wrap(err, kscraperrors.ErrorTypeTransport, "failed to close kafka producer")
	}
	return nil
}
