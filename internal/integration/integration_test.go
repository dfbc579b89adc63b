package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"sat-practice-service/internal/app"
	"sat-practice-service/internal/domain"
	pgstore "sat-practice-service/internal/infra/postgres"
	pgmigrations "sat-practice-service/internal/infra/postgres/migrations"
	infraredis "sat-practice-service/internal/infra/redis"
)

func TestQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := pgstore.NewQuestionStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	questionRepo := infraredis.NewQuestionRepository(redisClient, store, 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewPracticeService(sessionStore, questionRepo, app.SessionConfig{DefaultQuizSize: 3}).
		WithSubmissionSinks(store)

	info, err := service.StartQuiz(ctx, 3)
	if err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if info.Total != 3 {
		t.Fatalf("expected 3 questions, got %d", info.Total)
	}

	session, err := service.Lookup(info.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	// Answers are shuffled: find the displayed letter of the correct choice
	// by its text, which is "correct" in every seeded row.
	var correct domain.Letter
	for _, choice := range info.View.Answers {
		if choice.Text == "correct" {
			correct = choice.DisplayLetter
		}
	}
	if correct == "" {
		t.Fatalf("correct choice not found in %+v", info.View.Answers)
	}
	feedback, err := session.SelectAnswer(correct)
	if err != nil {
		t.Fatalf("select answer: %v", err)
	}
	if !feedback.Correct || feedback.Score != 1 {
		t.Fatalf("expected correct answer with score 1, got %+v", feedback)
	}

	results, err := session.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if results.Score != 1 || results.Total != 3 {
		t.Fatalf("expected 1/3, got %+v", results)
	}

	// Submissions land in the database for review.
	if err := service.SubmitQuestion(ctx, "add a subject-verb agreement question"); err != nil {
		t.Fatalf("submit question: %v", err)
	}
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&count); err != nil {
		t.Fatalf("count submissions: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one stored submission, got %d", count)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "sat", "POSTGRES_PASSWORD": "satpass", "POSTGRES_DB": "satdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://sat:satpass@%s:%s/satdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedQuestions(t *testing.T, ctx context.Context, dsn string) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO questions (passage, question, answer_a, answer_b, answer_c, answer_d, correct_answer)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			fmt.Sprintf("passage %d", i+1),
			fmt.Sprintf("prompt %d", i+1),
			"correct", "wrong b", "wrong c", "wrong d", "A",
		); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
