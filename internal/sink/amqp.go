package sink

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"mini-shuffle/internal/common"
	"mini-shuffle/internal/logger"
)

// ResultMessage es el cuerpo JSON de cada mensaje publicado.
type ResultMessage struct {
	JobID string `json:"job_id"`
	Seq   int    `json:"seq"`
	Key   any    `json:"key"`
	Value any    `json:"value"`
}

// publisher es la parte de *amqp.Channel que usa el sink.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publica cada entrada del resultado como un mensaje en una cola durable.
type AMQPSink struct {
	queue string
	ch    publisher
	conn  *amqp.Connection
}

// NewAMQPSink se conecta a url y declara la cola (durable, sin auto-delete).
func NewAMQPSink(url, queue string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ connection: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	logger.Info("Sink", "Cola '%s' declarada (durable)", queue)

	s := newAMQPSink(ch, queue)
	s.conn = conn
	return s, nil
}

func newAMQPSink(ch publisher, queue string) *AMQPSink {
	return &AMQPSink{queue: queue, ch: ch}
}

func (s *AMQPSink) Write(ctx context.Context, jobID string, entries []common.Entry) error {
	for i, e := range entries {
		body, err := json.Marshal(ResultMessage{JobID: jobID, Seq: i, Key: e.Key, Value: e.Value})
		if err != nil {
			return fmt.Errorf("job %s: serializando entrada %d: %w", jobID, i, err)
		}
		err = s.ch.PublishWithContext(ctx,
			"",      // exchange por defecto
			s.queue, // routing key
			false,   // mandatory
			false,   // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    fmt.Sprintf("%s-%d", jobID, i),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("job %s: publicando en %s: %w", jobID, s.queue, err)
		}
	}
	logger.Debug("Sink", "Job %s: %d mensajes publicados en '%s'", jobID, len(entries), s.queue)
	return nil
}

func (s *AMQPSink) Close() error {
	err := s.ch.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
