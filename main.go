// Command twitch-bot is the entrypoint for the chat command bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Validates the bot's user token and keeps it refreshed.
//   - Registers the built-in commands and dispatches chat messages to them.
//   - Starts the points accrual and scheduled message timers.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /metrics and admin routes.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/meteor314/twitch-bot/bot"
	"github.com/meteor314/twitch-bot/broadcast"
	"github.com/meteor314/twitch-bot/builtin"
	"github.com/meteor314/twitch-bot/chat"
	"github.com/meteor314/twitch-bot/command"
	"github.com/meteor314/twitch-bot/config"
	"github.com/meteor314/twitch-bot/cooldown"
	"github.com/meteor314/twitch-bot/crypto"
	"github.com/meteor314/twitch-bot/db"
	"github.com/meteor314/twitch-bot/oauth"
	"github.com/meteor314/twitch-bot/points"
	"github.com/meteor314/twitch-bot/server"
	"github.com/meteor314/twitch-bot/telemetry"
	"github.com/meteor314/twitch-bot/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}
	for _, w := range cfg.Warnings() {
		slog.Warn(w, slog.String("component", "config"))
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("twitch-bot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Versioned migrations first; embedded SQL is the fallback for databases
	// created before schema_migrations existed.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, falling back to embedded SQL", slog.Any("err", err), slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
	}
	store := db.NewStore(database)
	if cfg.TokenEncryptionKey != "" {
		sealer, err := crypto.NewAESSealer(cfg.TokenEncryptionKey)
		if err != nil {
			slog.Error("invalid TOKEN_ENCRYPTION_KEY", slog.Any("err", err))
			os.Exit(1)
		}
		store.WithSealer(sealer)
		slog.Info("oauth token encryption enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	botCfg := cfg.Bot()

	// Bot user token: persisted copy wins over the configured one.
	keeper := oauth.NewKeeper(store, oauth.Provider)
	if err := keeper.Seed(ctx, config.BareToken(cfg.TwitchOAuthToken), cfg.TwitchRefreshToken); err != nil {
		slog.Error("failed to load bot token", slog.Any("err", err))
		os.Exit(1)
	}
	refresh := refreshFunc(cfg)
	moderatorID := validateBotToken(ctx, keeper, refresh)

	// Platform API, only when app credentials are present.
	var channelAPI builtin.ChannelAPI
	if err := cfg.ValidateHelix(); err != nil {
		slog.Warn("twitch api disabled; title, clip, ban and timeout will be unavailable", slog.Any("err", err))
	} else {
		helix := &twitchapi.HelixClient{
			AppTokenSource:  &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
			UserTokenSource: keeper,
			ClientID:        cfg.TwitchClientID,
		}
		channelAPI = twitchapi.NewChannel(helix, botCfg.Channel, moderatorID)
	}

	tally := chat.NewTally()
	accrual := points.New(store, cfg.PointsInterval, cfg.PointsPerTick)
	cooldowns := cooldown.New()

	registry := command.NewRegistry()
	err = builtin.Register(registry, builtin.Deps{
		Bot:         botCfg,
		Store:       store,
		Chatters:    tally,
		Channel:     channelAPI,
		CommandsURL: cfg.CommandsURL,
		ExportDir:   cfg.ExportDir,
		PublicDir:   cfg.PublicDir,
	})
	if err != nil {
		slog.Error("failed to register built-in commands", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("built-in commands registered", slog.Int("count", registry.Len()))
	resolver := command.NewResolver(botCfg, registry, store, cooldowns, cfg.CustomCommandCooldown)

	chatToken, _ := keeper.AccessToken(ctx)
	client := chat.NewClient(chat.Options{
		Username:    cfg.TwitchBotUsername,
		Token:       config.IRCToken(chatToken),
		Channel:     botCfg.Channel,
		MaxInFlight: cfg.MaxConcurrentCommands,
	})
	keeper.OnRefresh(func(tok string) { client.SetToken(config.IRCToken(tok)) })
	client.OnMessage(bot.NewDispatcher(botCfg, resolver, client, accrual, tally).Handle)

	scheduler := broadcast.New(store, client, botCfg.Channel)

	if cfg.TwitchRefreshToken != "" && cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		keeper.StartRefresher(ctx, cfg.TokenRefreshInterval, cfg.TokenRefreshWindow, refresh)
	}
	startPprof(ctx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := client.Run(ctx); err != nil {
			slog.Error("chat client stopped", slog.Any("err", err))
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := server.Start(ctx, server.Deps{
			DB:            store,
			Chat:          client,
			Cooldowns:     cooldowns,
			Schedules:     scheduler,
			AdminToken:    cfg.AdminToken,
			ReloadContext: ctx,
		}, cfg.HTTPAddr); err != nil {
			stop()
		}
	}()

	if err := accrual.Start(ctx); err != nil {
		slog.Error("points accrual not started", slog.Any("err", err))
	}
	if err := scheduler.Start(ctx); err != nil {
		slog.Error("scheduled messages not started", slog.Any("err", err))
	}

	slog.Info("bot running", slog.String("channel", botCfg.Channel), slog.String("prefix", botCfg.Prefix), slog.String("owner", botCfg.Owner))
	<-ctx.Done()
	slog.Info("shutting down")
	scheduler.Stop()
	accrual.Stop()
	wg.Wait()
	slog.Info("shutdown complete")
}

// setupLogging configures the default slog logger from LOG_LEVEL and LOG_FORMAT.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}

func refreshFunc(cfg *config.Config) oauth.RefreshFunc {
	return func(ctx context.Context, refreshToken string) (db.OAuthToken, error) {
		tok, err := twitchapi.RefreshUserToken(ctx, nil, cfg.TwitchClientID, cfg.TwitchClientSecret, refreshToken)
		if err != nil {
			return db.OAuthToken{}, err
		}
		return db.OAuthToken{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			Expiry:       tok.Expiry,
			Scope:        twitchapi.Scope(tok),
		}, nil
	}
}

// validateBotToken checks the bot token with Twitch, refreshing it once if it was
// rejected, and returns the bot's user id for moderation calls ("" if unknown).
func validateBotToken(ctx context.Context, keeper *oauth.Keeper, refresh oauth.RefreshFunc) string {
	logger := slog.Default().With(slog.String("component", "oauth"))
	validate := func() (*twitchapi.Validation, error) {
		ctx2, cancel := context.WithTimeout(ctx, 8*time.Second)
		defer cancel()
		tok, err := keeper.AccessToken(ctx2)
		if err != nil {
			return nil, err
		}
		return twitchapi.ValidateToken(ctx2, nil, tok)
	}

	v, err := validate()
	if errors.Is(err, twitchapi.ErrInvalidToken) {
		logger.Warn("bot token rejected, attempting refresh")
		// a window longer than any token lifetime forces the refresh
		if refreshed, rerr := keeper.RefreshIfDue(ctx, 24*365*time.Hour, refresh); rerr != nil || !refreshed {
			logger.Error("bot token invalid and could not be refreshed", slog.Any("err", rerr))
			return ""
		}
		v, err = validate()
	}
	if err != nil {
		logger.Warn("bot token validation failed", slog.Any("err", err))
		return ""
	}
	if err := keeper.SetExpiry(ctx, twitchapi.ComputeExpiry(v.ExpiresIn), strings.Join(v.Scopes, " ")); err != nil {
		logger.Warn("failed to persist token expiry", slog.Any("err", err))
	}
	for _, scope := range []string{"chat:read", "chat:edit", "moderator:manage:banned_users", "clips:edit", "channel:manage:broadcast"} {
		if !v.HasScope(scope) {
			logger.Warn("bot token missing scope", slog.String("scope", scope))
		}
	}
	logger.Info("bot token valid", slog.String("login", v.Login), slog.String("user_id", v.UserID))
	return v.UserID
}

// startPprof serves /debug/pprof on PPROF_ADDR when ENABLE_PPROF=1.
func startPprof(ctx context.Context) {
	if os.Getenv("ENABLE_PPROF") != "1" {
		return
	}
	addr := os.Getenv("PPROF_ADDR")
	if addr == "" {
		addr = "localhost:6060"
	}
	srv := &http.Server{Addr: addr, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("pprof profiling enabled", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("pprof server error", slog.Any("err", err))
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}
