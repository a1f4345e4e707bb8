package sms

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type published struct {
	topic   string
	key     []byte
	value   []byte
	headers map[string]string
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) ProduceMessage(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{topic, key, value, headers})
	return nil
}

func TestKafkaSender_PublishesMessage(t *testing.T) {
	pub := &fakePublisher{}
	s := NewKafkaSender(pub, "sms.verification", 5*time.Minute)
	s.now = func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) }

	require.NoError(t, s.Send(context.Background(), "13800138000", "123456"))
	require.Len(t, pub.msgs, 1)

	m := pub.msgs[0]
	assert.Equal(t, "sms.verification", m.topic)
	assert.Equal(t, []byte("13800138000"), m.key)
	assert.Equal(t, TemplateVerification, m.headers["template"])

	var got Message
	require.NoError(t, json.Unmarshal(m.value, &got))
	assert.Equal(t, "13800138000", got.PhoneNumber)
	assert.Equal(t, "123456", got.Params.Code)
	assert.Equal(t, 5, got.Params.TTLMinutes)
	assert.True(t, got.RequestedAt.Equal(s.now()))
}

func TestKafkaSender_PublishFailure(t *testing.T) {
	boom := errors.New("broker down")
	s := NewKafkaSender(&fakePublisher{err: boom}, "t", time.Minute)

	err := s.Send(context.Background(), "13800138000", "123456")
	assert.ErrorIs(t, err, boom)
}

func TestLogSender_MasksPhone(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))

	require.NoError(t, s.Send(context.Background(), "13800138000", "123456"))

	entries := logs.FilterMessage("Verification code dispatched").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "138****8000", entries[0].ContextMap()["phone_number"])
	assert.Zero(t, logs.FilterMessage("Verification code").Len())
}
