// Package cli wires the engine into the gamesmith command line.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"gamesmith/assets"
	"gamesmith/compiler"
	"gamesmith/config"
	"gamesmith/core"
	"gamesmith/fs"
	"gamesmith/llm"
	"gamesmith/logger"
	"gamesmith/metrics"
	"gamesmith/project"
	"gamesmith/server"
	"gamesmith/version"
)

var rootCmd = &cobra.Command{
	Use:   "gamesmith",
	Short: "Gamesmith builds browser games from chat",
	Long:  `Gamesmith is a backend that turns natural-language chat into a playable TypeScript browser game, keeping a version history of every change.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		flags, err := parseServeFlags(cmd)
		if err != nil {
			fmt.Printf("Error parsing flags: %v\n", err)
			os.Exit(1)
		}
		if err := runServe(flags); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Build a game interactively from the terminal",
	Run: func(cmd *cobra.Command, args []string) {
		flags, err := parseChatFlags(cmd)
		if err != nil {
			fmt.Printf("Error parsing flags: %v\n", err)
			os.Exit(1)
		}

		m, err := newChatModel(flags)
		if err != nil {
			fmt.Printf("Error initializing chat: %v\n", err)
			os.Exit(1)
		}

		p := tea.NewProgram(m)
		if _, err := p.Run(); err != nil {
			fmt.Printf("Error running program: %v\n", err)
			os.Exit(1)
		}
	},
}

type serveFlags struct {
	config string
	addr   string
}

type chatFlags struct {
	name   string
	config string
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)

	serveCmd.Flags().StringP("config", "c", "", "Path to the configuration directory")
	serveCmd.Flags().StringP("addr", "a", "", "Listen address, overrides configuration")

	chatCmd.Flags().StringP("name", "n", "", "The name of the game to build or continue")
	chatCmd.Flags().StringP("config", "c", "", "Path to the configuration directory")
	chatCmd.MarkFlagRequired("name")
}

func parseServeFlags(cmd *cobra.Command) (serveFlags, error) {
	cfg, err := cmd.Flags().GetString("config")
	if err != nil {
		return serveFlags{}, err
	}
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return serveFlags{}, err
	}
	return serveFlags{config: cfg, addr: addr}, nil
}

func parseChatFlags(cmd *cobra.Command) (chatFlags, error) {
	name, err := cmd.Flags().GetString("name")
	if err != nil {
		return chatFlags{}, err
	}
	cfg, err := cmd.Flags().GetString("config")
	if err != nil {
		return chatFlags{}, err
	}
	return chatFlags{name: name, config: cfg}, nil
}

// buildEngine assembles the engine and its collaborators from
// configuration, backed by the real filesystem.
func buildEngine(cfg *config.Config, l logger.Logger, m *metrics.Metrics) (*core.Engine, error) {
	fsys := fs.NewOsFileSystem()
	ws := project.NewWorkspace(fsys, cfg.GamesRoot)
	versions := version.NewStore(fsys, l)
	chat := project.NewChatLog(fsys)

	client, err := llm.NewOpenAIClient(&llm.ClientConfig{
		APIKey:    cfg.OpenAIAPIKey,
		ModelName: cfg.ModelName,
		TellmURL:  cfg.TellmURL,
	}, l)
	if err != nil {
		return nil, err
	}

	checker := compiler.NewTscChecker(cfg.TscBin, nil, l)
	scaffolder := assets.NewScaffolder(fsys, assets.NewPollinationsFetcher(), cfg.SoundStockDir, l)

	return core.NewEngine(core.Deps{
		LLM:       client,
		Checker:   checker,
		Workspace: ws,
		Versions:  versions,
		Chat:      chat,
		Assets:    scaffolder,
		Metrics:   m,
		Logger:    l,
	}), nil
}

func runServe(flags serveFlags) error {
	cfg, err := config.LoadConfig(flags.config)
	if err != nil {
		return err
	}
	if flags.addr != "" {
		cfg.ListenAddr = flags.addr
	}

	l := logger.NewStderr(cfg.LogLevel)
	m := metrics.New()

	engine, err := buildEngine(cfg, l, m)
	if err != nil {
		return err
	}

	srv := server.NewServer(server.Config{
		ListenAddr:  cfg.ListenAddr,
		CORSOrigins: cfg.CORSOrigins,
	}, engine, m, l)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-done
		if err := srv.Shutdown(); err != nil {
			l.WithField("error", err).Error("shutdown failed")
		}
	}()

	return srv.Start()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
