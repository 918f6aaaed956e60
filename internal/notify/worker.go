package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rosevale/habitloop/internal/model"

	"github.com/sethvargo/go-retry"
)

// SubscriptionSource lists a user's push subscriptions and prunes dead
// ones.
type SubscriptionSource interface {
	ListByUser(userID int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

// pushBody is the JSON the service worker receives.
type pushBody struct {
	Title   string  `json:"title"`
	Options Options `json:"options"`
}

type timerKey struct {
	userID int64
	tag    string
}

// Worker is the background execution context: it consumes bus messages,
// holds one wall-clock timer per (user, tag), and delivers over web
// push at fire time. Scheduling the same key replaces the pending
// timer; cancellation is by tag prefix. Delivery is best effort and
// never reported back.
type Worker struct {
	bus    *ChannelBus
	sender Sender
	subs   SubscriptionSource
	logger *slog.Logger

	mu     sync.Mutex
	timers map[timerKey]*time.Timer
}

func NewWorker(bus *ChannelBus, sender Sender, subs SubscriptionSource, logger *slog.Logger) *Worker {
	return &Worker{
		bus:    bus,
		sender: sender,
		subs:   subs,
		logger: logger.With("component", "notify_worker"),
		timers: make(map[timerKey]*time.Timer),
	}
}

// Run consumes the bus until the context is cancelled or the bus is
// closed, then stops every pending timer.
func (w *Worker) Run(ctx context.Context) {
	defer w.stopAll()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.bus.Messages():
			if !ok {
				return
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg Message) {
	switch msg.Type {
	case MsgSchedule:
		w.schedule(ctx, msg.Payload)
	case MsgCancel:
		w.cancel(msg.Payload.UserID, msg.Payload.Tag)
	default:
		w.logger.Warn("unknown message type", "type", msg.Type)
	}
}

func (w *Worker) schedule(ctx context.Context, p Payload) {
	notifyAt, err := time.Parse(time.RFC3339, p.NotifyAt)
	if err != nil {
		w.logger.Warn("bad notifyAt", "value", p.NotifyAt, "error", err)
		return
	}
	delay := time.Until(notifyAt)
	if delay < 0 {
		return
	}

	key := timerKey{userID: p.UserID, tag: p.Options.Tag}

	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.timers[key]; ok {
		prev.Stop()
	}
	w.timers[key] = time.AfterFunc(delay, func() {
		w.mu.Lock()
		delete(w.timers, key)
		w.mu.Unlock()
		w.deliver(ctx, p)
	})
}

func (w *Worker) cancel(userID int64, prefix string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, timer := range w.timers {
		if key.userID == userID && strings.HasPrefix(key.tag, prefix) {
			timer.Stop()
			delete(w.timers, key)
		}
	}
}

// Pending reports how many timers a user has whose tag starts with
// prefix. An empty prefix matches all of the user's timers.
func (w *Worker) Pending(userID int64, prefix string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for key := range w.timers {
		if key.userID == userID && strings.HasPrefix(key.tag, prefix) {
			n++
		}
	}
	return n
}

func (w *Worker) deliver(ctx context.Context, p Payload) {
	payload, err := json.Marshal(pushBody{Title: p.Title, Options: p.Options})
	if err != nil {
		w.logger.Error("marshal push body", "error", err)
		return
	}

	subs, err := w.subs.ListByUser(p.UserID)
	if err != nil {
		w.logger.Error("list subscriptions", "user_id", p.UserID, "error", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		err := retry.Do(ctx, retry.WithMaxRetries(3, retry.NewExponential(time.Second)), func(ctx context.Context) error {
			err := w.sender.Send(ctx, sub, payload)
			if err == nil || errors.Is(err, ErrExpired) {
				return err
			}
			return retry.RetryableError(err)
		})
		switch {
		case err == nil:
			w.logger.Debug("push delivered", "user_id", p.UserID, "tag", p.Options.Tag)
		case errors.Is(err, ErrExpired):
			if err := w.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				w.logger.Warn("prune expired subscription", "error", err)
			}
		default:
			w.logger.Warn("push delivery failed",
				"user_id", p.UserID, "tag", p.Options.Tag, "error", err)
		}
	}
}

func (w *Worker) stopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for key, timer := range w.timers {
		timer.Stop()
		delete(w.timers, key)
	}
}
