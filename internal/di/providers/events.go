package providers

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"

	"github.com/estudio-ia/studio-server/internal/broker"
	"github.com/estudio-ia/studio-server/internal/config"
	"github.com/estudio-ia/studio-server/internal/events"
	"github.com/estudio-ia/studio-server/internal/sse"
)

// ProvideNotifier provides the in-process event notifier shared by the
// export service and its subscribers.
func ProvideNotifier(_ do.Injector) (*events.Notifier, error) {
	return events.New(), nil
}

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
	detach func()
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.detach()
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager, fed by the notifier.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*LoggerHandle](i)
	notifier := do.MustInvoke[*events.Notifier](i)

	manager := sse.NewManager(log.Logger.Logger)
	detach := manager.Attach(notifier)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
		detach:  detach,
	}, nil
}

// EventMirrorHandle owns the optional Redis mirror of job events.
// Mirror is nil when no Redis address is configured.
type EventMirrorHandle struct {
	Mirror *broker.Mirror
	client *redis.Client
	detach func()
}

// Shutdown implements do.Shutdownable.
func (h *EventMirrorHandle) Shutdown() error {
	if h.Mirror == nil {
		return nil
	}
	h.detach()
	if err := h.Mirror.Close(); err != nil {
		return err
	}
	return h.client.Close()
}

// ProvideEventMirror connects to Redis and republishes notifier events on the
// configured channel.
func ProvideEventMirror(i do.Injector) (*EventMirrorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)
	notifier := do.MustInvoke[*events.Notifier](i)

	if cfg.Events.RedisAddr == "" {
		log.Debug("Redis event mirror disabled")
		return &EventMirrorHandle{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := broker.Connect(ctx, broker.Options{
		Addr:     cfg.Events.RedisAddr,
		Password: cfg.Events.RedisPassword,
		DB:       cfg.Events.RedisDB,
		Channel:  cfg.Events.RedisChannel,
	})
	if err != nil {
		return nil, err
	}

	mirror := broker.NewMirror(client, cfg.Events.RedisChannel, log.Logger.Logger)
	mirror.Start()
	detach := mirror.Attach(notifier)

	log.Info("Redis event mirror started",
		"addr", cfg.Events.RedisAddr,
		"channel", mirror.Channel())

	return &EventMirrorHandle{Mirror: mirror, client: client, detach: detach}, nil
}
