package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"social_backend/internal/app/di"
	"social_backend/internal/app/router"
	"social_backend/internal/app/seed"
	authadapters "social_backend/internal/feature/auth/adapters"
	authhandler "social_backend/internal/feature/auth/transport/handler"
	authusecase "social_backend/internal/feature/auth/usecase"
	postsadapters "social_backend/internal/feature/posts/adapters"
	postshandler "social_backend/internal/feature/posts/transport/handler"
	postsusecase "social_backend/internal/feature/posts/usecase"
	"social_backend/internal/platform/db"
	jwtmw "social_backend/internal/platform/jwt"
	"social_backend/internal/platform/mailer"
	infraredis "social_backend/internal/platform/redis"
	"social_backend/internal/platform/storage"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	addr    string
	migrate bool
	seed    bool
}

func main() {
	// .envを読み込む（存在しなければ環境変数のみ）
	envErr := godotenv.Load()

	opts := options{}
	pflag.StringVar(&opts.addr, "addr", envOr("ADDR", ":8080"), "HTTP listen address")
	pflag.BoolVar(&opts.migrate, "migrate", false, "run database migrations before serving (also RUN_MIGRATIONS=true)")
	pflag.BoolVar(&opts.seed, "seed", false, "create the admin user and sample posts before serving")
	pflag.Parse()

	setupLogger(os.Getenv("LOG_LEVEL"))
	if envErr != nil {
		slog.Info(".env not found; using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// setupLogger はJSON形式のslogをデフォルトロガーに設定します。
func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}

func splitOrigins(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func run(ctx context.Context, opts options) error {
	// JWT
	jwtCfg := jwtmw.LoadConfigFromEnv()
	if jwtCfg.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	issuer := jwtmw.NewIssuer(jwtCfg.Secret, jwtCfg.Expiration)

	// db
	dbCfg := db.LoadConfigFromEnv()
	gdb, err := db.OpenDB(dbCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()
	if opts.migrate || dbCfg.RunMigrations {
		models := append(authadapters.Models(), postsadapters.Models()...)
		if err := db.Migrate(gdb, models...); err != nil {
			return err
		}
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("db.DB(): %w", err)
	}

	// Redis（なくても動作する）
	var rdb *redisv9.Client
	if redisCfg := infraredis.LoadConfigFromEnv(); redisCfg.Enabled() {
		if tmp, err := infraredis.NewRedisClient(ctx, redisCfg); err != nil {
			slog.Warn("Redis unavailable. Running without cache and reset throttle.", "error", err)
		} else {
			rdb = tmp
			defer func() {
				if err := rdb.Close(); err != nil {
					slog.Error("failed to close Redis client", "error", err)
				}
			}()
		}
	}

	// Repository
	userRepo := authadapters.NewUserGorm(gdb)
	postStore := di.NewPostStore(rdb, gdb)
	commentRepo := postsadapters.NewCommentGorm(gdb)

	// Usecase
	authUC := authusecase.NewAuthUsecase(userRepo, issuer)
	recoveryUC := authusecase.NewRecoveryUsecase(userRepo, di.NewEmailSender(mailer.LoadConfigFromEnv()), issuer, di.NewResetThrottle(rdb))
	postUC := postsusecase.NewPostUsecase(postStore, commentRepo)
	queryUC := postsusecase.NewQueryUsecase(postStore)

	if opts.seed {
		if _, err := seed.Run(ctx, authUC, postStore); err != nil {
			return err
		}
	}

	images, err := storage.NewLocalImageStore(storage.DirFromEnv())
	if err != nil {
		return err
	}

	// Handler
	authH := authhandler.NewAuthHandler(authUC, recoveryUC, issuer.Expiration())
	postH := postshandler.NewPostHandler(postUC, queryUC, images)

	// ルータ生成
	r := router.NewRouter(router.Deps{
		Auth:        authH,
		Posts:       postH,
		Verifier:    issuer,
		DB:          sqlDB,
		ImageDir:    images.Dir(),
		CORSOrigins: splitOrigins(os.Getenv("CORS_ALLOWED_ORIGINS")),
	})

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", opts.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
