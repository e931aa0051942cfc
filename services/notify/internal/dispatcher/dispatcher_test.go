package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/diagnosis/seat-reservations/pkg/events"
	"github.com/diagnosis/seat-reservations/pkg/mailer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.sent = append(m.sent, msg)
	return "msg-1", nil
}

type fakeSMS struct {
	mu    sync.Mutex
	texts map[string]string
	err   error
}

func (s *fakeSMS) Send(_ context.Context, phone, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.texts == nil {
		s.texts = map[string]string{}
	}
	s.texts[phone] = message
	return nil
}

type fakeSubscriber struct {
	subject, queue string
	handler        func(*events.Message)
}

func (f *fakeSubscriber) Subscribe(string, func(*events.Message)) error { return nil }

func (f *fakeSubscriber) QueueSubscribe(subject, queue string, handler func(*events.Message)) error {
	f.subject, f.queue, f.handler = subject, queue, handler
	return nil
}

func (f *fakeSubscriber) Close() error { return nil }

func confirmation() events.NotificationEvent {
	return events.NotificationEvent{
		Type:     events.NotifyBookingConfirmation,
		Channels: []string{events.ChannelEmail, events.ChannelSMS},
		Email:    "ada@example.com",
		Phone:    "+2348012345678",
		Name:     "Ada",
		Subject:  "Booking Confirmation - Event Hall Reservation",
		HTML:     "<p>AB12CD34</p>",
		SMS:      "Your event hall booking is confirmed! Ticket ID: AB12CD34.",
	}
}

func TestDeliverBothChannels(t *testing.T) {
	m, s := &fakeMailer{}, &fakeSMS{}
	d := New(m, s)

	require.NoError(t, d.Deliver(context.Background(), confirmation()))
	require.Len(t, m.sent, 1)
	assert.Equal(t, "ada@example.com", m.sent[0].To)
	assert.Equal(t, "Ada", m.sent[0].ToName)
	assert.Contains(t, s.texts["+2348012345678"], "AB12CD34")
}

func TestDeliverEmailOnly(t *testing.T) {
	m, s := &fakeMailer{}, &fakeSMS{}
	job := confirmation()
	job.Type = events.NotifyCancellation
	job.Channels = []string{events.ChannelEmail}

	require.NoError(t, New(m, s).Deliver(context.Background(), job))
	assert.Len(t, m.sent, 1)
	assert.Empty(t, s.texts)
}

func TestDeliverKeepsGoingWhenSMSFails(t *testing.T) {
	m, s := &fakeMailer{}, &fakeSMS{err: errors.New("gateway down")}

	err := New(m, s).Deliver(context.Background(), confirmation())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sms: gateway down")
	assert.Len(t, m.sent, 1)
}

func TestDeliverJoinsErrors(t *testing.T) {
	m, s := &fakeMailer{err: errors.New("smtp refused")}, &fakeSMS{err: errors.New("gateway down")}

	err := New(m, s).Deliver(context.Background(), confirmation())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email: smtp refused")
	assert.Contains(t, err.Error(), "sms: gateway down")
}

func TestStartSubscribesToQueue(t *testing.T) {
	m, s := &fakeMailer{}, &fakeSMS{}
	sub := &fakeSubscriber{}
	require.NoError(t, New(m, s).Start(sub, "notify"))
	assert.Equal(t, events.NotifySend, sub.subject)
	assert.Equal(t, "notify", sub.queue)

	raw, err := json.Marshal(confirmation())
	require.NoError(t, err)
	sub.handler(&events.Message{Subject: events.NotifySend, Data: raw, ID: "1"})
	assert.Len(t, m.sent, 1)

	// malformed jobs are dropped
	sub.handler(&events.Message{Subject: events.NotifySend, Data: []byte("{"), ID: "2"})
	assert.Len(t, m.sent, 1)
}
