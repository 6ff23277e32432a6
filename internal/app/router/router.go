package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	authhandler "social_backend/internal/feature/auth/transport/handler"
	postshandler "social_backend/internal/feature/posts/transport/handler"
	"social_backend/internal/platform/http/handler"
	jwtmw "social_backend/internal/platform/jwt"
	"social_backend/internal/platform/storage"
)

// Deps はルーターが必要とするハンドラーと依存関係です。
type Deps struct {
	Auth     *authhandler.AuthHandler
	Posts    *postshandler.PostHandler
	Verifier jwtmw.Verifier
	DB       handler.Pinger
	ImageDir string
	// CORSOrigins が空の場合はすべてのオリジンを許可します。
	CORSOrigins []string
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AddAllowHeaders("Authorization")
	cfg.MaxAge = 12 * time.Hour
	return cfg
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.Default()
	r.Use(cors.New(corsConfig(d.CORSOrigins)))

	// 導通確認用
	health := handler.Health(d.DB)
	r.GET("/healthz", health)
	r.HEAD("/healthz", health)
	r.OPTIONS("/healthz", health)

	// アップロード画像の配信
	if d.ImageDir != "" {
		r.Static(storage.URLPrefix, d.ImageDir)
	}

	authRequired := jwtmw.AuthRequired(d.Verifier)

	api := r.Group("/api")

	// 認証不要
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", d.Auth.Register)
		// ログイン（JWT 発行）
		authGroup.POST("/login", d.Auth.Login)
		authGroup.POST("/forgotpassword", d.Auth.ForgotPassword)
		authGroup.POST("/verifycode", d.Auth.VerifyCode)
		authGroup.PUT("/resetpassword", d.Auth.ResetPassword)
	}

	// 認証必須
	users := api.Group("/users", authRequired)
	{
		users.GET("/profile", d.Auth.GetProfile)
		users.PUT("/profile", d.Auth.UpdateProfile)
	}

	posts := api.Group("/posts")
	{
		posts.GET("", d.Posts.ListPosts)
		posts.GET("/search", d.Posts.SearchPosts)
		posts.GET("/filter", d.Posts.FilterPosts)
		posts.GET("/mostliked", d.Posts.MostLikedPosts)
		posts.GET("/:id", d.Posts.GetPost)
		posts.GET("/:id/comments", d.Posts.ListComments)

		posts.POST("", authRequired, d.Posts.CreatePost)
		posts.PUT("/:id", authRequired, d.Posts.UpdatePost)
		posts.DELETE("/:id", authRequired, d.Posts.DeletePost)
		posts.POST("/:id/like", authRequired, d.Posts.LikePost)
		posts.POST("/:id/comments", authRequired, d.Posts.CreateComment)
		posts.DELETE("/:id/comments/:commentId", authRequired, d.Posts.DeleteComment)
	}

	return r
}
