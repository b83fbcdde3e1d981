// Package broker mirrors notifier events to a Redis pub/sub channel so other
// processes can follow export jobs.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/estudio-ia/studio-server/internal/events"
)

// Publisher is the subset of *redis.Client the mirror needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Message is the JSON body published for every event.
type Message struct {
	Name      string    `json:"name"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"userId,omitempty"`
}

// Options configures a Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Connect opens a Redis client and verifies it with PING.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Mirror publishes notifier events on a background goroutine so a slow Redis
// never blocks the emitter. Events arriving while the buffer is full are dropped.
type Mirror struct {
	pub     Publisher
	channel string
	logger  *slog.Logger

	queue chan Message
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewMirror creates a mirror publishing to channel.
func NewMirror(pub Publisher, channel string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mirror{
		pub:     pub,
		channel: channel,
		logger:  logger,
		queue:   make(chan Message, 256),
	}
}

// Channel returns the Redis channel events are published to.
func (m *Mirror) Channel() string {
	return m.channel
}

// Start runs the publishing loop until Close.
func (m *Mirror) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for msg := range m.queue {
			m.publish(msg)
		}
	}()
}

// Attach forwards every notifier event to the mirror. The returned func detaches it.
func (m *Mirror) Attach(n *events.Notifier) func() {
	return n.OnAny(m.handle)
}

func (m *Mirror) handle(e events.Event) {
	msg := Message{Name: e.Name, Payload: e.Payload, Timestamp: e.Timestamp}
	if o, ok := e.Payload.(interface{ Owner() string }); ok {
		msg.UserID = o.Owner()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- msg:
	default:
		m.logger.Warn("event mirror queue full, dropping event", slog.String("event", e.Name))
	}
}

func (m *Mirror) publish(msg Message) {
	body, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error("failed to encode event", slog.String("event", msg.Name), slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := m.pub.Publish(ctx, m.channel, body).Err(); err != nil {
		m.logger.Warn("failed to publish event",
			slog.String("event", msg.Name),
			slog.String("channel", m.channel),
			slog.String("error", err.Error()))
	}
}

// Close stops accepting events and waits for queued ones to be published.
func (m *Mirror) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}
