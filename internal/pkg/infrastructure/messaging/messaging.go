package messaging

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/diwise/iot-fleet-monitor/internal/pkg/infrastructure/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// TopicMessage is the contract for anything published on the topic exchange.
type TopicMessage interface {
	ContentType() string
	TopicName() string
	Body() []byte
}

type MsgContext interface {
	PublishOnTopic(ctx context.Context, message TopicMessage) error
	Close()
}

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Exchange string
}

func LoadConfigFromEnv() Config {
	getOrDef := func(name, def string) string {
		if v := os.Getenv(name); v != "" {
			return v
		}
		return def
	}

	return Config{
		Host:     os.Getenv("RABBITMQ_HOST"),
		Port:     getOrDef("RABBITMQ_PORT", "5672"),
		User:     getOrDef("RABBITMQ_USER", "user"),
		Password: getOrDef("RABBITMQ_PASSWORD", "bitnami"),
		Exchange: getOrDef("RABBITMQ_EXCHANGE", "iot-fleet-monitor"),
	}
}

// Initialize connects to the broker and declares the topic exchange. An
// empty host in the config yields a no-op context so that the service can
// run without a broker.
func Initialize(ctx context.Context, cfg Config) (MsgContext, error) {
	if cfg.Host == "" {
		return &noopContext{}, nil
	}

	amqpURL := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.User, cfg.Password, cfg.Host, cfg.Port)

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	logger := logging.GetFromContext(ctx)
	logger.Info().Msgf("connected to rabbitmq at %s", cfg.Host)

	return &rabbitMQContext{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
	}, nil
}

type rabbitMQContext struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string

	mu sync.Mutex
}

func (r *rabbitMQContext) PublishOnTopic(ctx context.Context, message TopicMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.channel.PublishWithContext(ctx,
		r.exchange,
		message.TopicName(),
		false,
		false,
		amqp.Publishing{
			ContentType: message.ContentType(),
			Timestamp:   time.Now().UTC(),
			Body:        message.Body(),
		},
	)
}

func (r *rabbitMQContext) Close() {
	r.channel.Close()
	r.conn.Close()
}

type noopContext struct{}

func (n *noopContext) PublishOnTopic(ctx context.Context, message TopicMessage) error {
	return nil
}

func (n *noopContext) Close() {}
