package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"studylab/internal/practice"
)

const (
	exchangeName        = "practice.events"
	keySessionCompleted = "session.completed"
)

// Publisher emits domain events for other platform services. Delivery is best
// effort: finalization never fails because of a publish error.
type Publisher interface {
	SessionCompleted(ctx context.Context, rec practice.Record) error
	Close() error
}

// AMQPPublisher publishes to a topic exchange on RabbitMQ.
type AMQPPublisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  *slog.Logger
}

func NewAMQPPublisher(url string, log *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, log: log}, nil
}

type sessionCompletedEvent struct {
	LearnerID        int64     `json:"learner_id"`
	ExamID           int64     `json:"exam_id"`
	FinishedAt       time.Time `json:"finished_at"`
	DurationSeconds  int       `json:"duration_seconds"`
	TotalScore       int       `json:"total_score"`
	TotalQuestions   int       `json:"total_questions"`
	CorrectQuestions int       `json:"correct_questions"`
}

func (p *AMQPPublisher) SessionCompleted(ctx context.Context, rec practice.Record) error {
	body, err := json.Marshal(sessionCompletedEvent{
		LearnerID:        rec.LearnerID,
		ExamID:           rec.ExamID,
		FinishedAt:       rec.FinishedAt,
		DurationSeconds:  rec.DurationSeconds,
		TotalScore:       rec.TotalScore,
		TotalQuestions:   rec.TotalQuestions,
		CorrectQuestions: rec.CorrectQuestions,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, exchangeName, keySessionCompleted, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", keySessionCompleted, err)
	}
	p.log.Debug("event published", "routing_key", keySessionCompleted, "learner_id", rec.LearnerID)
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NopPublisher is used when messaging is disabled in config.
type NopPublisher struct{}

func (NopPublisher) SessionCompleted(context.Context, practice.Record) error { return nil }
func (NopPublisher) Close() error                                            { return nil }
