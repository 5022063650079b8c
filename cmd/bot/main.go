// Package main provides the bot entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/vitality/internal/api/status"
	"github.com/osa030/vitality/internal/app/filter"
	"github.com/osa030/vitality/internal/app/notification"
	"github.com/osa030/vitality/internal/app/relay"
	"github.com/osa030/vitality/internal/app/resolve"
	"github.com/osa030/vitality/internal/app/router"
	"github.com/osa030/vitality/internal/app/session"
	"github.com/osa030/vitality/internal/app/session/registry"
	"github.com/osa030/vitality/internal/infra/config"
	"github.com/osa030/vitality/internal/infra/discord"
	"github.com/osa030/vitality/internal/infra/lavalink"
	"github.com/osa030/vitality/internal/infra/logger"
)

var (
	app        = kingpin.New("vitality", "Vitality music bot")
	configPath = app.Flag("config", "Path to config file").Default("config/bot.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	errorLog   = app.Flag("error-log", "Path to the durable error log (empty disables it)").Default("logs/errors.log").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		// Without a readable config the enabled column is left out.
		cfg, _ := config.Load(*configPath)
		printFilters(os.Stdout, cfg)
		return
	}

	loggerConfig := logger.Config{
		Output:    "stdout",
		Level:     "info",
		ErrorFile: *errorLog,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Bot error: %v", err)
		os.Exit(1)
	}
}

// run wires the bot and blocks until a shutdown signal arrives.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var statusAddr string
	if cfg.Status.Enabled {
		statusAddr = cfg.Status.Addr
	}
	// Registered first so it runs after every other teardown
	defer executeHooks(cfg.Hooks.OnStopped, "on_stopped", statusAddr)

	filters, err := filter.NewChainFromConfig(cfg.Filters)
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}
	active := make([]string, 0, len(filters.Filters()))
	for _, f := range filters.Filters() {
		active = append(active, f.Name())
	}
	zlog.Info().Msgf("Filters active: count=%d, names=[%s]", len(active), strings.Join(active, ", "))

	gateway, err := discord.New(cfg.Bot.Token)
	if err != nil {
		return err
	}
	if err := gateway.Open(); err != nil {
		return err
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			zlog.Error().Msgf("Failed to close gateway: %v", err)
		}
	}()
	botUserID := gateway.BotUserID()

	lava, err := lavalink.New(botUserID, gateway)
	if err != nil {
		return err
	}
	defer lava.Close()
	if err := lava.AddNodes(ctx, cfg.Nodes); err != nil {
		return err
	}

	resolver, err := resolve.NewFromConfig(ctx, cfg.Resolver, lava)
	if err != nil {
		return errors.Wrap(err, "failed to create resolver")
	}

	sessions := registry.New(func(_ context.Context, guildID, voiceChannelID, textChannelID string) (*session.Session, error) {
		conn, err := lava.Connection(guildID)
		if err != nil {
			return nil, err
		}
		return session.New(guildID, voiceChannelID, textChannelID, conn, session.Config{
			DefaultVolume: cfg.Player.DefaultVolume,
		}), nil
	}, registry.WithConnect(func(ctx context.Context, s *session.Session) error {
		return gateway.JoinVoice(ctx, s.GuildID(), s.VoiceChannelID())
	}))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sessions.DestroyAll(shutdownCtx)
	}()

	notifier := notification.NewManager(gateway, time.Duration(cfg.Player.NotifyTimeoutMs)*time.Millisecond)
	formatter := notification.NewFormatter(cfg.Color())

	commands := router.New(router.Config{
		Prefix:     cfg.Bot.Prefix,
		RatePerSec: cfg.Commands.RatePerSec,
		Burst:      cfg.Commands.Burst,
	}, router.Deps{
		Sessions:  sessions,
		Resolver:  resolver,
		Voice:     gateway,
		Notifier:  notifier,
		Formatter: formatter,
		Filters:   filters,
	})
	events := relay.New(botUserID, sessions, lava, notifier, formatter)

	gateway.Register(ctx, discord.Handlers{
		Message:     commands.HandleMessage,
		VoiceState:  events.HandleVoiceState,
		VoiceServer: events.HandleVoiceServer,
	})
	go events.Run(ctx, lava.Events())

	statusErrCh := make(chan error, 1)
	if cfg.Status.Enabled {
		server := status.New(status.Config{
			Addr:     cfg.Status.Addr,
			Token:    cfg.Status.Token,
			ErrorLog: *errorLog,
		}, sessions, gateway)
		go func() {
			statusErrCh <- server.Run(ctx)
		}()
	}

	zlog.Info().Msgf("Bot started: user=%s, prefix=%s, nodes=%d", gateway.BotTag(), cfg.Bot.Prefix, len(cfg.Nodes))
	executeHooks(cfg.Hooks.OnStarted, "on_started", statusAddr)

	select {
	case <-ctx.Done():
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-statusErrCh:
		if err != nil {
			return err
		}
	}

	zlog.Info().Msgf("Bot stopping: sessions=%d, notifications_sent=%d, notifications_failed=%d",
		sessions.Count(), notifier.Sent(), notifier.Failures())
	return nil
}

// printFilters prints available filters. With a loaded config each filter
// is marked enabled or disabled.
func printFilters(w io.Writer, cfg *config.Config) {
	registered := filter.GetRegistered()
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Available Filters:")
	for _, name := range names {
		f := registered[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		status := ""
		if cfg != nil {
			status = " (disabled)"
			if cfg.IsFilterEnabled(name) {
				status = " (enabled)"
			}
		}
		fmt.Fprintf(w, "  %-30s - %s [codes: %s]%s\n", f.Name(), f.Description(), codes, status)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage, statusAddr string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = append(os.Environ(), "VITALITY_STATUS_ADDR="+statusAddr)

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
