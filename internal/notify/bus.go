package notify

import (
	"log/slog"
	"sync"
)

// Message types carried by the bus.
const (
	MsgSchedule = "SCHEDULE_NOTIFICATION"
	MsgCancel   = "CANCEL_NOTIFICATIONS"
)

// Options is the display payload forwarded to the push service.
type Options struct {
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Badge string         `json:"badge,omitempty"`
	Tag   string         `json:"tag"`
	Data  map[string]any `json:"data,omitempty"`
}

// Payload is the body of a bus message. Schedule messages carry Title,
// Options and NotifyAt; cancel messages carry only the tag prefix.
type Payload struct {
	Title    string  `json:"title,omitempty"`
	Options  Options `json:"options,omitempty"`
	NotifyAt string  `json:"notifyAt,omitempty"`
	Tag      string  `json:"tag,omitempty"`
	UserID   int64   `json:"userId"`
}

// Message is one request handed to the background worker.
type Message struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Bus is a one-way hand-off to the background execution context. There
// is no acknowledgement: publishing never reports delivery.
type Bus interface {
	Publish(msg Message)
}

// ChannelBus is a buffered in-process Bus. When the buffer is full the
// message is dropped and counted, never blocked on.
type ChannelBus struct {
	ch     chan Message
	logger *slog.Logger

	mu      sync.Mutex
	dropped int64
	closed  bool
}

func NewChannelBus(size int, logger *slog.Logger) *ChannelBus {
	if size <= 0 {
		size = 256
	}
	return &ChannelBus{
		ch:     make(chan Message, size),
		logger: logger.With("component", "notify_bus"),
	}
}

func (b *ChannelBus) Publish(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.ch <- msg:
	default:
		b.dropped++
		b.logger.Warn("bus full, message dropped",
			"type", msg.Type, "tag", msg.Payload.Tag, "dropped_total", b.dropped)
	}
}

// Messages is the worker's receive side.
func (b *ChannelBus) Messages() <-chan Message {
	return b.ch
}

// Dropped reports how many messages were discarded on a full buffer.
func (b *ChannelBus) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close stops accepting messages and closes the receive channel.
func (b *ChannelBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
