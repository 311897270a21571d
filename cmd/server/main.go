package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"promptbot/internal/auth"
	"promptbot/internal/bot"
	"promptbot/internal/broadcast"
	"promptbot/internal/config"
	"promptbot/internal/db"
	clog "promptbot/internal/log"
	"promptbot/internal/mw"
	"promptbot/internal/server"
	"promptbot/internal/service"
	"promptbot/internal/store"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func main() {
	// main 负责加载配置、初始化日志与存储、连接聊天机器人并启动 Gin 服务。
	_ = godotenv.Load()
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	loc, _ := cfg.Location()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens, prompts := openStores(ctx, cfg)

	var messenger bot.Messenger = bot.LogMessenger{}
	var session *discordgo.Session
	if cfg.BotToken != "" {
		s, err := discordgo.New("Bot " + cfg.BotToken)
		if err != nil {
			log.Fatal().Err(err).Msg("discord session")
		}
		session = s
		messenger = bot.NewDiscordMessenger(s)
	} else {
		log.Warn().Msg("BOT_APITOKEN not set, chat messages are only logged")
	}

	templates := bot.NewTemplates(cfg.BotMessageURL, nil)
	go templates.Run(ctx, cfg.TemplateRefresh)

	issuer := service.NewTokenIssuer(tokens, cfg.TokenBytes)
	b := bot.New(bot.Options{
		Prefix:            cfg.Prefix,
		AdminRoleID:       cfg.AdminRoleID,
		HostURL:           cfg.HostURL,
		PromptFormPath:    cfg.PromptFormPath,
		ManagePromptsPath: cfg.ManagePromptsPath,
		Timeout:           cfg.RequestTimeout,
	}, issuer, messenger, templates)
	if session != nil {
		b.Attach(session)
		if err := session.Open(); err != nil {
			log.Fatal().Err(err).Msg("discord connect")
		}
		defer session.Close()
	}

	authz := auth.NewAuthorizer(tokens)
	dispatcher := broadcast.NewDispatcher(messenger, cfg.ArchiveChannelID, cfg.PromptChannelIDs, loc, cfg.RequestTimeout)
	h := server.NewHandler(authz,
		service.NewSubmissionService(authz, prompts),
		service.NewModerationService(authz, prompts, dispatcher),
	)
	// 控制单个 IP+路由的速率。
	limiter := mw.NewRateLimiter(rate.Every(time.Second/20), 40, 2*time.Minute)
	defer limiter.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.SetupRouter(cfg, h, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

func openStores(ctx context.Context, cfg config.Config) (store.TokenStore, store.PromptStore) {
	if cfg.StoreDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		m := store.NewMemory()
		return m.Tokens(), m.Prompts()
	}
	gdb, err := db.Connect(ctx, cfg.DatabaseDSN, db.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}
	return store.NewGormTokens(gdb), store.NewGormPrompts(gdb)
}
