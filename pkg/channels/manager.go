package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dotsetgreg/similobot/pkg/bus"
	"github.com/dotsetgreg/similobot/pkg/config"
	"github.com/dotsetgreg/similobot/pkg/logger"
)

// Channel is one chat surface the guide listens on. The HTTP gateway is
// not a channel; it talks to the pipeline directly.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
}

// Manager owns the chat channels and the outbound dispatcher that fans
// pipeline replies back to them. The channel set is fixed at construction.
type Manager struct {
	channels     map[string]Channel
	bus          *bus.MessageBus
	stopDispatch context.CancelFunc
	mu           sync.Mutex
}

func NewManager(cfg *config.Config, messageBus *bus.MessageBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      messageBus,
	}

	if strings.TrimSpace(cfg.Channels.Discord.Token) == "" {
		logger.InfoC("channels", "Discord token not configured, channel disabled")
		return m, nil
	}

	discord, err := NewDiscordChannel(cfg.Channels.Discord, messageBus)
	if err != nil {
		return nil, fmt.Errorf("initialize Discord channel: %w", err)
	}
	m.channels[discord.Name()] = discord
	logger.InfoC("channels", "Discord channel initialized")

	return m, nil
}

// StartAll starts every channel and the outbound dispatcher. A channel
// that fails to start rolls back the ones already started.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var started []Channel
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			for _, s := range started {
				if stopErr := s.Stop(ctx); stopErr != nil {
					logger.WarnCF("channels", "Failed to stop partially-started channel", map[string]any{
						"channel": s.Name(),
						"error":   stopErr.Error(),
					})
				}
			}
			return fmt.Errorf("start %s channel: %w", name, err)
		}
		started = append(started, ch)
		logger.InfoCF("channels", "Channel started", map[string]any{"channel": name})
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	if m.stopDispatch != nil {
		m.stopDispatch()
	}
	m.stopDispatch = cancel
	go m.dispatchOutbound(dispatchCtx)

	return nil
}

func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopDispatch != nil {
		m.stopDispatch()
		m.stopDispatch = nil
	}

	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			logger.ErrorCF("channels", "Error stopping channel", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

// dispatchOutbound routes pipeline replies to the channel named in each
// message. The channel map is immutable after construction, so no lock.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}

		ch, exists := m.channels[msg.Channel]
		if !exists {
			logger.WarnCF("channels", "Unknown channel for outbound message", map[string]any{
				"channel": msg.Channel,
			})
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			logger.ErrorCF("channels", "Error sending message to channel", map[string]any{
				"channel": msg.Channel,
				"error":   err.Error(),
			})
		}
	}
}

func (m *Manager) GetEnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}
