// Package notify delivers booking notifications to users. Delivery mechanics
// (email, push) live behind the Notifier interface; the booking lifecycle
// only decides who is told what, and when.
package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier sends one notification to one user. Callers treat it as
// fire-and-forget: a returned error is logged, never retried.
type Notifier interface {
	Notify(ctx context.Context, userID int64, event string, payload map[string]any) error
}

// LogNotifier writes each notification as a structured log line. It is the
// default sender when no delivery channel is configured.
type LogNotifier struct {
	Log zerolog.Logger
}

// NewLog returns a LogNotifier writing to log.
func NewLog(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{Log: log}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, userID int64, event string, payload map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event == "" {
		return errors.New("notify: empty event")
	}
	n.Log.Info().
		Str("notification_id", uuid.NewString()).
		Int64("user_id", userID).
		Str("event", event).
		Fields(payload).
		Msg("notification sent")
	return nil
}

// Sent is one notification captured by a Recorder.
type Sent struct {
	UserID  int64
	Event   string
	Payload map[string]any
}

// Recorder is an in-memory Notifier that keeps everything it is asked to send.
// Err, when set, is returned from every call after recording it.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, userID int64, event string, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{UserID: userID, Event: event, Payload: payload})
	return r.Err
}

// Sent returns a copy of the recorded notifications, in send order.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Count returns how many notifications of event were sent to userID.
func (r *Recorder) Count(userID int64, event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.UserID == userID && s.Event == event {
			n++
		}
	}
	return n
}
