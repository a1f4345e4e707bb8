// Package sms delivers verification codes to phones.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"life-auth/internal/util"
)

const TemplateVerification = "verification_code"

// Sender delivers a verification code to a phone number.
type Sender interface {
	Send(ctx context.Context, phoneNumber, code string) error
}

// LogSender writes deliveries to the log instead of a gateway. Used in
// development and tests.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = util.Named("sms")
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, phoneNumber, code string) error {
	s.logger.Info("Verification code dispatched",
		util.Phone("phone_number", phoneNumber),
		zap.String("channel", "log"))
	s.logger.Debug("Verification code", zap.String("code", code))
	return nil
}

// Publisher is the part of client.KafkaProducer the KafkaSender needs.
type Publisher interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Message is the request the SMS gateway consumes from the topic.
type Message struct {
	PhoneNumber string    `json:"phoneNumber"`
	Template    string    `json:"template"`
	Params      Params    `json:"params"`
	RequestedAt time.Time `json:"requestedAt"`
}

type Params struct {
	Code       string `json:"code"`
	TTLMinutes int    `json:"ttlMinutes"`
}

// KafkaSender hands delivery off to the SMS gateway service by publishing
// a Message keyed by phone number, so requests for one phone stay ordered.
type KafkaSender struct {
	pub   Publisher
	topic string
	ttl   time.Duration
	now   func() time.Time
}

func NewKafkaSender(pub Publisher, topic string, codeTTL time.Duration) *KafkaSender {
	return &KafkaSender{pub: pub, topic: topic, ttl: codeTTL, now: time.Now}
}

func (s *KafkaSender) Send(ctx context.Context, phoneNumber, code string) error {
	value, err := json.Marshal(Message{
		PhoneNumber: phoneNumber,
		Template:    TemplateVerification,
		Params: Params{
			Code:       code,
			TTLMinutes: int(s.ttl / time.Minute),
		},
		RequestedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode sms message: %w", err)
	}

	headers := map[string]string{"content-type": "application/json", "template": TemplateVerification}
	if err := s.pub.ProduceMessage(ctx, s.topic, []byte(phoneNumber), value, headers); err != nil {
		util.Error("Failed to publish sms request", util.Phone("phone_number", phoneNumber), zap.Error(err))
		return fmt.Errorf("failed to publish sms request: %w", err)
	}
	return nil
}
