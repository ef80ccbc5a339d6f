package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/icymirror/larkgpt/internal/bot"
	"github.com/icymirror/larkgpt/internal/chat"
	"github.com/icymirror/larkgpt/internal/config"
	"github.com/icymirror/larkgpt/internal/gateway"
	"github.com/icymirror/larkgpt/internal/history"
	"github.com/icymirror/larkgpt/internal/lark"
	"github.com/icymirror/larkgpt/internal/llm"
	"github.com/icymirror/larkgpt/internal/logging"
	"github.com/icymirror/larkgpt/internal/search"
	"github.com/icymirror/larkgpt/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			issues = append(issues, config.ValidateCredentials(&cfg)...)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			// The --log-level flag wins over the config file.
			level := cfg.Logging.Level
			if logLevel != "" {
				level = logLevel
			}
			if cfg.Logging.File != "" {
				log = logging.NewFile(cfg.Logging.File, level)
			} else {
				log = logging.New(nil, level)
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			histStore, closeStore, err := openHistoryStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			completer, err := llm.NewOpenAIClient(llm.ClientConfig{
				BaseURL: cfg.OpenAI.BaseURL,
				APIKey:  cfg.OpenAI.APIKey,
				Proxy:   cfg.OpenAI.Proxy,
			}, log)
			if err != nil {
				return fmt.Errorf("creating completion client: %w", err)
			}

			orch := chat.NewOrchestrator(completer, histStore, cfg.OpenAI.Model, log).
				WithWindow(cfg.History.Window)

			messenger := lark.NewClient(lark.ClientConfig{
				BaseURL:   cfg.Lark.BaseURL,
				AppID:     cfg.Lark.AppID,
				AppSecret: cfg.Lark.AppSecret,
				RateLimit: cfg.Lark.RateLimit,
			}, log)

			var searcher search.Searcher
			if cfg.Search.Enabled {
				gc, err := search.NewGoogleClient(ctx, search.Config{
					APIKey:     cfg.Search.APIKey,
					EngineID:   cfg.Search.EngineID,
					MaxResults: cfg.Search.MaxResults,
				}, log)
				if err != nil {
					return fmt.Errorf("creating search client: %w", err)
				}
				searcher = gc
				log.Info().Msg("web search function enabled")
			}

			feed := gateway.NewFeed(log)
			b := bot.New(bot.Config{
				Streamer:  orch,
				Messenger: messenger,
				Notifier:  messenger,
				Searcher:  searcher,
				Store:     histStore,
				Gap:       time.Duration(cfg.Throttle.GapMillis) * time.Millisecond,
				Observer:  feed,
			}, log)

			srv := gateway.New(gateway.Config{
				Port:              cfg.Gateway.Port,
				Bind:              cfg.Gateway.Bind,
				VerificationToken: cfg.Gateway.VerificationToken,
				BotName:           cfg.Lark.AppName,
				AllowedOrigins:    cfg.Gateway.AllowedOrigins,
			}, b, feed, log)

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (lan, loopback)")

	return cmd
}

// openHistoryStore opens the configured history backend and returns it with
// its teardown.
func openHistoryStore(ctx context.Context, cfg config.Config) (history.Store, func(), error) {
	if cfg.History.Backend == "mongo" {
		client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.History.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to mongodb: %w", err)
		}

		dbName := cfg.History.Mongo.Database
		if dbName == "" {
			dbName = "larkgpt"
		}
		ms, err := history.NewMongoStore(ctx, client.Database(dbName))
		if err != nil {
			client.Disconnect(context.Background())
			return nil, nil, err
		}
		log.Info().Str("database", dbName).Msg("using MongoDB history store")
		return ms, func() { client.Disconnect(context.Background()) }, nil
	}

	db, err := store.Open(paths.HistoryDB(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info().Str("path", paths.HistoryDB()).Msg("using SQLite history store")
	return history.NewSQLiteStore(db), func() { db.Close() }, nil
}
