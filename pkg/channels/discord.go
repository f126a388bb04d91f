package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/dotsetgreg/similobot/pkg/bus"
	"github.com/dotsetgreg/similobot/pkg/config"
	"github.com/dotsetgreg/similobot/pkg/logger"
)

const (
	discordName           = "discord"
	sendTimeout           = 10 * time.Second
	typingRefreshInterval = 8 * time.Second

	// Discord caps messages at 2000 characters; leave room for natural
	// split points.
	discordChunkLimit = 1500
)

type DiscordChannel struct {
	session *discordgo.Session
	bus     *bus.MessageBus
	allow   Allowlist
	running atomic.Bool
	typing  typingPinger
}

func NewDiscordChannel(cfg config.DiscordConfig, messageBus *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	c := &DiscordChannel{
		session: session,
		bus:     messageBus,
		allow:   Allowlist(cfg.AllowFrom),
	}
	c.typing.init(session)
	return c, nil
}

func (c *DiscordChannel) Name() string {
	return discordName
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	c.running.Store(true)

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("get bot user: %w", err)
	}
	logger.InfoCF(discordName, "Discord guide connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	c.running.Store(false)
	c.typing.stopAll()

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	return nil
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.running.Load() {
		return fmt.Errorf("discord channel not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("channel ID is empty")
	}
	defer c.typing.end(msg.ChatID)

	if msg.Content == "" {
		return nil
	}
	for _, chunk := range splitMessage(msg.Content, discordChunkLimit) {
		if err := c.sendChunk(ctx, msg.ChatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *DiscordChannel) sendChunk(ctx context.Context, channelID, content string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.session.ChannelMessageSend(channelID, content)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("send message timeout: %w", sendCtx.Err())
	}
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}

	// Attachments are ignored: the guide only reasons over text.
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return
	}

	senderName := m.Author.Username
	if m.Author.Discriminator != "" && m.Author.Discriminator != "0" {
		senderName += "#" + m.Author.Discriminator
	}

	c.typing.begin(m.ChannelID, func() bool { return c.running.Load() })

	logger.DebugCF(discordName, "Received message", map[string]any{
		"sender_name": senderName,
		"sender_id":   m.Author.ID,
		"preview":     preview(content, 50),
	})

	c.publishUtterance(m.Author.ID, m.ChannelID, content, map[string]string{
		"message_id":   m.ID,
		"user_id":      m.Author.ID,
		"username":     m.Author.Username,
		"display_name": senderName,
		"guild_id":     m.GuildID,
		"channel_id":   m.ChannelID,
		"is_dm":        fmt.Sprintf("%t", m.GuildID == ""),
	})
}

// publishUtterance puts one player utterance on the bus. The session key
// pins each Discord channel to its own table conversation.
func (c *DiscordChannel) publishUtterance(senderID, chatID, content string, metadata map[string]string) {
	if !c.allow.Allows(senderID) {
		logger.DebugCF(discordName, "Message rejected by allowlist", map[string]any{"sender_id": senderID})
		return
	}

	c.bus.PublishInbound(bus.InboundMessage{
		Channel:    discordName,
		SenderID:   senderID,
		ChatID:     chatID,
		Content:    content,
		SessionKey: discordName + ":" + chatID,
		Metadata:   metadata,
	})
}

// splitMessage cuts long replies at natural boundaries (a newline in the
// last 200 runes, else a space in the last 100) so Discord's length limit
// never truncates mid-sentence. The limit counts runes; chunks never break
// inside a multi-byte character.
func splitMessage(content string, limit int) []string {
	var chunks []string
	runes := []rune(content)
	for len(runes) > limit {
		cut := naturalBreak(runes[:limit])
		chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
		for cut < len(runes) && (runes[cut] == ' ' || runes[cut] == '\t' || runes[cut] == '\n') {
			cut++
		}
		runes = runes[cut:]
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

func naturalBreak(runes []rune) int {
	if i := lastRuneWithin(runes, "\n", 200); i > 0 {
		return i
	}
	if i := lastRuneWithin(runes, " \t", 100); i > 0 {
		return i
	}
	return len(runes)
}

func lastRuneWithin(runes []rune, cutset string, window int) int {
	start := len(runes) - window
	if start < 0 {
		start = 0
	}
	for i := len(runes) - 1; i >= start; i-- {
		if strings.ContainsRune(cutset, runes[i]) {
			return i
		}
	}
	return -1
}

func preview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// typingPinger keeps the typing indicator alive per channel while turns
// are in flight, refcounted so overlapping turns share one ticker.
type typingPinger struct {
	session *discordgo.Session
	mu      sync.Mutex
	active  map[string]*typingRef
}

type typingRef struct {
	refs   int
	cancel context.CancelFunc
}

func (t *typingPinger) init(session *discordgo.Session) {
	t.session = session
	t.active = make(map[string]*typingRef)
}

func (t *typingPinger) ping(channelID string) {
	if channelID == "" || t.session == nil {
		return
	}
	if err := t.session.ChannelTyping(channelID); err != nil {
		logger.ErrorCF(discordName, "Failed to send typing indicator", map[string]any{"error": err.Error()})
	}
}

func (t *typingPinger) begin(channelID string, alive func() bool) {
	if channelID == "" {
		return
	}

	t.mu.Lock()
	if ref, ok := t.active[channelID]; ok {
		ref.refs++
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.active[channelID] = &typingRef{refs: 1, cancel: cancel}
	t.mu.Unlock()

	t.ping(channelID)

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if alive != nil && !alive() {
					return
				}
				t.ping(channelID)
			}
		}
	}()
}

func (t *typingPinger) end(channelID string) {
	if channelID == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ref, ok := t.active[channelID]
	if !ok {
		return
	}
	ref.refs--
	if ref.refs > 0 {
		return
	}
	delete(t.active, channelID)
	ref.cancel()
}

func (t *typingPinger) stopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for channelID, ref := range t.active {
		ref.cancel()
		delete(t.active, channelID)
	}
}
