package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func executeCLI() error {
	root := buildRootCommand()
	if err := root.Execute(); err != nil {
		return err
	}
	return nil
}

func buildRootCommand() *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "similobot",
		Short: "Conversational Similo guide with HTTP gateway and Discord channel",
		Long: strings.TrimSpace(`similobot walks a table through the Similo deduction card game.

Use CLI commands to onboard, chat locally, run the HTTP gateway and Discord
channel, and manage stored game sessions.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newSessionsCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newOnboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.similobot config",
		Long:    "Create the default configuration file for a new similobot installation.",
		Example: "  similobot onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			onboard()
			return nil
		},
	}
}

func newChatCommand() *cobra.Command {
	var (
		message string
		session string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the guide locally (CLI mode)",
		Long:  "Run an interactive local session or send one-shot messages without the gateway.",
		Example: strings.Join([]string{
			"  similobot chat",
			"  similobot chat --session cli:livingroom",
			"  similobot chat --message \"教我玩\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return chatCmd(message, session, debug)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot message to send to the guide")
	cmd.Flags().StringVarP(&session, "session", "s", "cli:default", "Session key for continuity")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func newServeCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP gateway + Discord channel",
		Long:    "Start the HTTP chat gateway, channel adapters, and the session cleanup janitor.",
		Example: "  similobot serve --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCmd(debug)
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration, provider, and runtime readiness",
		Example: "  similobot status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return statusCmd()
		},
	}
}

func newSessionsCommand() *cobra.Command {
	sessionsRoot := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and clean up stored game sessions",
	}

	sessionsRoot.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "List stored sessions with phase and turn count",
		Example: "  similobot sessions list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sessionsListCmd()
		},
	})

	var idleMinutes int

	purge := &cobra.Command{
		Use:     "purge",
		Short:   "Delete sessions idle longer than --idle-minutes",
		Example: "  similobot sessions purge --idle-minutes 240",
		RunE: func(cmd *cobra.Command, args []string) error {
			if idleMinutes <= 0 {
				return fmt.Errorf("--idle-minutes must be positive")
			}
			return sessionsPurgeCmd(idleMinutes)
		},
	}
	purge.Flags().IntVar(&idleMinutes, "idle-minutes", 240, "Idle threshold in minutes")
	sessionsRoot.AddCommand(purge)

	return sessionsRoot
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show build/version metadata",
		Example: "  similobot version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}
