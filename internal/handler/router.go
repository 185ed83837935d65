package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pickvote/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なDB接続の部分集合。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	// RequestLogger はリクエストログの出力先。nilの場合はslog.Default()を使用する。
	RequestLogger *slog.Logger

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー・フォロー
	UserService   UserServiceInterface
	FollowService FollowServiceInterface

	// 投票・ピック
	VoteService VoteServiceInterface
	PickService PickServiceInterface
	// ImageClient はSSRF防止機能付きのHTTPクライアント（画像プロキシ用）
	ImageClient *http.Client

	// コメント
	CommentService CommentServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS →
//	SessionMiddleware → CSRFMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/auth/*）とユーザー登録は認証ミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	requestLogger := deps.RequestLogger
	if requestLogger == nil {
		requestLogger = slog.Default()
	}

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(requestLogger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService, deps.FollowService)
	voteHandler := NewVoteHandler(deps.VoteService, deps.PickService, deps.ImageClient)
	commentHandler := NewCommentHandler(deps.CommentService)

	// --- 認証不要のルート ---

	// ヘルスチェック
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheusスクレイプ
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認証ルート（OAuthフローとパスワードログイン）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/{provider}/login", authHandler.Login)
		r.Get("/{provider}/callback", authHandler.Callback)
		r.Post("/login", authHandler.PasswordLogin)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// ユーザー登録（サインアップ）
	r.Post("/api/users", userHandler.Register)

	// CSRFトークン取得（フロントエンドの初期化用）
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Patch("/me", userHandler.UpdateProfile)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/followers", userHandler.ListFollowers)
				r.Get("/following", userHandler.ListFollowing)
			})
		})

		// フォロー管理
		r.Route("/api/follows", func(r chi.Router) {
			r.Post("/", userHandler.Follow)
			r.Delete("/{toUserID}", userHandler.Unfollow)
		})

		// 投票管理
		r.Route("/api/votes", func(r chi.Router) {
			// POST /api/votes - 投票作成（作成専用レート制限を追加）
			r.With(deps.RateLimiter.VoteCreationMiddleware()).Post("/", voteHandler.Create)

			// GET /api/votes - 一覧（sort=popular）・検索（kind/keyword）
			r.Get("/", voteHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", voteHandler.Get)
				r.Patch("/", voteHandler.Update)
				r.Delete("/", voteHandler.Delete)

				r.Post("/picks", voteHandler.CastPick)
				r.Get("/results", voteHandler.Results)

				r.Get("/comments", commentHandler.List)
				r.Post("/comments", commentHandler.Create)
			})
		})

		// 画像プロキシ（SSRF防止クライアント経由）
		r.Get("/api/image-proxy", voteHandler.ProxyImage)

		// コメント管理
		r.Route("/api/comments/{id}", func(r chi.Router) {
			r.Patch("/", commentHandler.Update)
			r.Delete("/", commentHandler.Delete)
			r.Post("/like", commentHandler.Like)
			r.Delete("/like", commentHandler.Unlike)
		})
	})

	return r
}
