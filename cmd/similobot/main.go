package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"github.com/dotsetgreg/similobot/pkg/bus"
	"github.com/dotsetgreg/similobot/pkg/channels"
	"github.com/dotsetgreg/similobot/pkg/config"
	"github.com/dotsetgreg/similobot/pkg/logger"
	"github.com/dotsetgreg/similobot/pkg/pipeline"
	"github.com/dotsetgreg/similobot/pkg/providers"
	"github.com/dotsetgreg/similobot/pkg/server"
	"github.com/dotsetgreg/similobot/pkg/session"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "similobot"

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func formatBuildInfo() (build string, goVer string) {
	if buildTime != "" {
		build = buildTime
	}
	goVer = goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	build, goVer := formatBuildInfo()
	if build != "" {
		fmt.Printf("  Build: %s\n", build)
	}
	if goVer != "" {
		fmt.Printf("  Go: %s\n", goVer)
	}
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".similobot", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

func onboard() {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		reader := bufio.NewReader(os.Stdin)
		response, readErr := reader.ReadString('\n')
		if readErr != nil {
			fmt.Printf("Error reading input: %v\n", readErr)
			fmt.Println("Aborted.")
			return
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s is ready!\n", appName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add your API key to", configPath)
	fmt.Println("  2. (Optional) Add your Discord bot token to channels.discord.token")
	fmt.Println("  3. Chat locally: similobot chat -m \"教我玩\"")
	fmt.Println("  4. Run the gateway: similobot serve")
	fmt.Println("  5. Check readiness: similobot status")
}

// buildPipeline assembles the full turn pipeline from config. The oracle
// provider is optional: without credentials every turn still works through
// the heuristic tiers.
func buildPipeline(cfg *config.Config, withStore bool) (*pipeline.Pipeline, *session.Store, error) {
	var provider providers.LLMProvider
	if strings.TrimSpace(cfg.OracleAPIKey()) != "" {
		p, err := providers.CreateProvider(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create oracle provider: %w", err)
		}
		provider = p
	} else {
		logger.WarnC("main", "No oracle API key configured, running heuristic-only")
	}

	var store *session.Store
	if withStore {
		s, err := session.NewStore(cfg.SessionsDBPath())
		if err != nil {
			return nil, nil, fmt.Errorf("open session store: %w", err)
		}
		store = s
	}

	return pipeline.NewFromConfig(cfg, provider, store), store, nil
}

func serveCmd(debug bool) error {
	if debug {
		logger.SetDebug(true)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	p, store, err := buildPipeline(cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		if store != nil {
			if closeErr := store.Close(); closeErr != nil {
				logger.WarnCF("main", "Failed to close session store", map[string]any{"error": closeErr.Error()})
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Sessions().StartJanitor(ctx, cfg.Sessions.CleanupSchedule, time.Duration(cfg.Sessions.IdleTTLMinutes)*time.Minute)

	msgBus := bus.NewMessageBus()
	channelManager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		return fmt.Errorf("create channel manager: %w", err)
	}
	if err := channelManager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	go runInboundLoop(ctx, p, msgBus, time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second)

	httpSrv := server.New(cfg.Gateway.Host, cfg.Gateway.Port, p)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpSrv.Start(ctx)
	}()

	fmt.Printf("✓ Gateway started on %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	if enabled := channelManager.GetEnabledChannels(); len(enabled) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", strings.Join(enabled, ", "))
	}
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		fmt.Println("\nShutting down...")
	case err := <-serveErr:
		if err != nil {
			logger.ErrorCF("main", "HTTP gateway failed", map[string]any{"error": err.Error()})
		}
	}

	cancel()
	if err := channelManager.StopAll(context.Background()); err != nil {
		logger.WarnCF("main", "Error stopping channels", map[string]any{"error": err.Error()})
	}
	msgBus.Close()
	fmt.Println("✓ Gateway stopped")
	return nil
}

// runInboundLoop feeds channel utterances through the pipeline and publishes
// the replies back. Each turn gets its own oracle timeout.
func runInboundLoop(ctx context.Context, p *pipeline.Pipeline, msgBus *bus.MessageBus, turnTimeout time.Duration) {
	if turnTimeout <= 0 {
		turnTimeout = 45 * time.Second
	}
	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			return
		}

		turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
		result := p.ProcessTurn(turnCtx, pipeline.Request{
			SessionID: msg.SessionKey,
			Message:   msg.Content,
		})
		cancel()

		msgBus.PublishOutbound(bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: result.Reply,
		})
	}
}

func chatCmd(message, sessionID string, debug bool) error {
	if debug {
		logger.SetDebug(true)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	p, _, err := buildPipeline(cfg, false)
	if err != nil {
		return err
	}

	if sessionID == "" {
		sessionID = "cli:default"
	}

	if strings.TrimSpace(message) != "" {
		result := p.ProcessTurn(context.Background(), pipeline.Request{SessionID: sessionID, Message: message})
		fmt.Printf("\n%s %s\n", appName, result.Reply)
		return nil
	}

	fmt.Printf("%s Interactive mode (Ctrl+C to exit)\n\n", appName)
	return interactiveMode(p, sessionID)
}

func interactiveMode(p *pipeline.Pipeline, sessionID string) error {
	prompt := fmt.Sprintf("%s You: ", appName)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".similobot_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(p, sessionID)
		return nil
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		result := p.ProcessTurn(context.Background(), pipeline.Request{SessionID: sessionID, Message: input})
		fmt.Printf("\n%s %s\n\n", appName, result.Reply)
	}
}

func simpleInteractiveMode(p *pipeline.Pipeline, sessionID string) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("%s You: ", appName)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Goodbye!")
			return
		}

		result := p.ProcessTurn(context.Background(), pipeline.Request{SessionID: sessionID, Message: input})
		fmt.Printf("\n%s %s\n\n", appName, result.Reply)
	}
}

func statusCmd() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	configPath := getConfigPath()

	fmt.Printf("%s Status\n", appName)
	fmt.Printf("Version: %s\n", formatVersion())
	build, _ := formatBuildInfo()
	if build != "" {
		fmt.Printf("Build: %s\n", build)
	}
	fmt.Println()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:", configPath, "✓")
	} else {
		fmt.Println("Config:", configPath, "✗")
	}

	dbPath := cfg.SessionsDBPath()
	if _, err := os.Stat(dbPath); err == nil {
		fmt.Println("Sessions DB:", dbPath, "✓")
	} else {
		fmt.Println("Sessions DB:", dbPath, "not initialized")
	}

	status := func(enabled bool) string {
		if enabled {
			return "✓"
		}
		return "not set"
	}

	name, configured, mode, err := providers.ProviderCredentialStatus(cfg)
	if err != nil {
		fmt.Println("Oracle provider:", cfg.Oracle.Provider, "✗", err)
	} else {
		fmt.Printf("Oracle provider: %s (model %s)\n", name, cfg.Oracle.Model)
		fmt.Println("Oracle credentials:", status(configured), mode)
	}
	discordReady := strings.TrimSpace(cfg.Channels.Discord.Token) != ""
	fmt.Println("Discord token:", status(discordReady))
	fmt.Println("Chat ready: ✓ (heuristic tiers work without credentials)")
	fmt.Println("Full AI ready:", status(configured))
	return nil
}

func sessionsListCmd() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := session.NewStore(cfg.SessionsDBPath())
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	ids, err := store.SessionIDs()
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No stored sessions.")
		return nil
	}

	fmt.Println("\nStored sessions:")
	fmt.Println("----------------")
	for _, id := range ids {
		sess, found, err := store.LoadSession(id, cfg.Guide.MaxHistoryTurns)
		if err != nil || !found {
			fmt.Printf("  %s (unreadable)\n", id)
			continue
		}
		fmt.Printf("  %s\n", id)
		fmt.Printf("    Phase: %s\n", sess.Phase())
		fmt.Printf("    Turns: %d\n", sess.HistoryLen())
		fmt.Printf("    Updated: %s\n", sess.UpdatedAt().Format("2006-01-02 15:04"))
	}
	return nil
}

func sessionsPurgeCmd(idleMinutes int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := session.NewStore(cfg.SessionsDBPath())
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	cutoff := time.Now().Add(-time.Duration(idleMinutes) * time.Minute)
	n, err := store.DeleteIdleBefore(cutoff)
	if err != nil {
		return fmt.Errorf("purge sessions: %w", err)
	}
	fmt.Printf("Purged %d session(s) idle since %s\n", n, cutoff.Format("2006-01-02 15:04"))
	return nil
}
