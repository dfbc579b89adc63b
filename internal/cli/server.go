package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"sat-practice-service/internal/app"
	"sat-practice-service/internal/auth"
	"sat-practice-service/internal/config"
	"sat-practice-service/internal/domain"
	"sat-practice-service/internal/infra/memory"
	pgstore "sat-practice-service/internal/infra/postgres"
	redisinfra "sat-practice-service/internal/infra/redis"
	"sat-practice-service/internal/infra/webhook"
	transport "sat-practice-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the practice server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 4*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	var pgQuestions *pgstore.QuestionStore
	if pool != nil {
		pgQuestions = pgstore.NewQuestionStore(pool)
		loader = pgQuestions
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questionRepo app.QuestionRepository
	if redisClient != nil {
		questionRepo = redisinfra.NewQuestionRepository(redisClient, loader, questionTTL)
	} else {
		questionRepo = memory.NewQuestionRepository(loader, questionTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	webhooks := webhook.NewClient(webhook.Endpoints{
		Explain: cfg.Webhooks.ExplainURL,
		Report:  cfg.Webhooks.ReportURL,
		Submit:  cfg.Webhooks.SubmitURL,
	}, config.TTLDuration(cfg.Webhooks.Timeout, 30*time.Second))

	service := app.NewPracticeService(store, questionRepo, app.SessionConfig{
		DefaultQuizSize: cfg.Quiz.DefaultCount,
		ModuleSize:      cfg.Test.ModuleSize,
		ModuleCount:     cfg.Test.ModuleCount,
		TestDuration:    config.TTLDuration(cfg.Test.Duration, 32*time.Minute),
	}).WithWebhooks(webhooks, webhooks)

	sinks := []app.SubmissionSink{webhooks}
	if pgQuestions != nil {
		sinks = append([]app.SubmissionSink{pgQuestions}, sinks...)
	}
	service.WithSubmissionSinks(sinks...)

	broker := auth.NewBroker()
	verifier := auth.NewVerifier(cfg.Auth.Secret)

	wsHandler := transport.NewWSHandler(service, broker, verifier)
	apiHandler := transport.NewAPIHandler(service, broker, verifier)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting practice service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions provides a minimal bank for running without Postgres.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:     1,
			Prompt: "The author's use of the word \"measured\" in line 12 most nearly means",
			Passage: "The committee's response was measured, arriving only after every " +
				"member had reviewed the proposal twice.",
			Answers: map[domain.Letter]string{
				domain.LetterA: "calculated and deliberate",
				domain.LetterB: "quantified precisely",
				domain.LetterC: "rhythmically spaced",
				domain.LetterD: "reluctantly given",
			},
			CorrectAnswer: domain.LetterA,
			CreatedAt:     time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:     2,
			Prompt: "Which choice completes the text with the most logical transition?",
			Passage: "Glass frogs are translucent, which hides them from predators. " +
				"______ their transparency increases while they sleep.",
			Answers: map[domain.Letter]string{
				domain.LetterA: "Moreover,",
				domain.LetterB: "Nevertheless,",
				domain.LetterC: "For instance,",
				domain.LetterD: "In contrast,",
			},
			CorrectAnswer: domain.LetterA,
			CreatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}
