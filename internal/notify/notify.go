package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/yyds352/hospital-appointment/internal/appointment"
)

// Message is the payload published for every patient notification.
type Message struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Message       string    `json:"message"`
	SentAt        time.Time `json:"sent_at"`
}

// RedisPublisher publishes notifications on a Redis pub/sub channel for the
// SMS/push gateway to pick up.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	now     func() time.Time
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, now: time.Now}
}

func (p *RedisPublisher) Notify(ctx context.Context, appointmentID uuid.UUID, message string) error {
	body, err := json.Marshal(Message{AppointmentID: appointmentID, Message: message, SentAt: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// LogSink writes notifications to the log.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(_ context.Context, appointmentID uuid.UUID, message string) error {
	s.log.Info().
		Str("appointment_id", appointmentID.String()).
		Str("message", message).
		Msg("patient notification")
	return nil
}

// Multi fans a notification out to every sink. All sinks are tried; the
// failures are joined.
type Multi []appointment.NotificationSink

func (m Multi) Notify(ctx context.Context, appointmentID uuid.UUID, message string) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, appointmentID, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
