package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	redisv9 "github.com/redis/go-redis/v9"

	"social_backend/internal/app/di"
	"social_backend/internal/app/seed"
	authadapters "social_backend/internal/feature/auth/adapters"
	authusecase "social_backend/internal/feature/auth/usecase"
	postsadapters "social_backend/internal/feature/posts/adapters"
	"social_backend/internal/platform/db"
	jwtmw "social_backend/internal/platform/jwt"
	infraredis "social_backend/internal/platform/redis"
)

// seed は管理者ユーザーとサンプル投稿を作成して終了します。
func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info(".env not found; using system environment variables")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dbCfg := db.LoadConfigFromEnv()
	gdb, err := db.OpenDB(dbCfg)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb, append(authadapters.Models(), postsadapters.Models()...)...); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// キャッシュ済みの一覧を無効化するため、Redisがあれば経由させる
	var rdb *redisv9.Client
	if redisCfg := infraredis.LoadConfigFromEnv(); redisCfg.Enabled() {
		if tmp, err := infraredis.NewRedisClient(ctx, redisCfg); err == nil {
			rdb = tmp
			defer rdb.Close()
		}
	}

	jwtCfg := jwtmw.LoadConfigFromEnv()
	accounts := authusecase.NewAuthUsecase(authadapters.NewUserGorm(gdb), jwtmw.NewIssuer(jwtCfg.Secret, jwtCfg.Expiration))

	res, err := seed.Run(ctx, accounts, di.NewPostStore(rdb, gdb))
	if err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
	slog.Info("seed ok", "admin_created", res.AdminCreated, "posts_created", res.PostsCreated)
}
