package bootstrap

import (
	"database/sql"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/kah-digital/agency-backend/internal/api/http"
	"github.com/kah-digital/agency-backend/internal/api/http/middleware"
	authhttp "github.com/kah-digital/agency-backend/internal/auth/http"
	authmw "github.com/kah-digital/agency-backend/internal/auth/middleware"
	authrepo "github.com/kah-digital/agency-backend/internal/auth/repository"
	authsvc "github.com/kah-digital/agency-backend/internal/auth/service"
	"github.com/kah-digital/agency-backend/internal/board"
	boardhttp "github.com/kah-digital/agency-backend/internal/board/http"
	briefhttp "github.com/kah-digital/agency-backend/internal/brief/http"
	"github.com/kah-digital/agency-backend/internal/botcheck"
	leadshttp "github.com/kah-digital/agency-backend/internal/leads/http"
	leadsrepo "github.com/kah-digital/agency-backend/internal/leads/repository"
	"github.com/kah-digital/agency-backend/internal/mailer"
	"github.com/kah-digital/agency-backend/internal/notify"
	"github.com/kah-digital/agency-backend/internal/ratelimit"
	"github.com/kah-digital/agency-backend/internal/reply"
	replyhttp "github.com/kah-digital/agency-backend/internal/reply/http"

	"github.com/kah-digital/agency-backend/config"
)

type RouterDeps struct {
	Cfg     *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sql.DB
	Redis   *redis.Client
	Limiter *ratelimit.Limiter
}

// BuildRouter wires every feature group onto one engine: public intake,
// auth endpoints, and the gated admin console.
func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"https://kah-digital.com", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	cfg := dep.Cfg

	healthHandler := httpapi.NewHealthHandler("agency-backend", cfg.App.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	api := r.Group("/api")

	// Shared infrastructure.
	leadStore := leadsrepo.NewPostgresStore(dep.DB)
	mail := mailer.New(cfg.Mail.ResendAPIKey, cfg.Mail.FromAddress)
	dispatcher := notify.NewDispatcher(mail, cfg.Mail.NotifyTo, cfg.Webhook.URL)
	verifier := botcheck.NewVerifier(cfg.BotCheck.SecretKey, cfg.BotCheck.VerifyURL)

	// Public intake.
	leadsHandler := leadshttp.New(leadStore, verifier, dispatcher, dep.Limiter, ratelimit.Config{
		Window: cfg.RateLimit.SubmitWindow,
		Max:    cfg.RateLimit.SubmitMax,
	})
	leadsHandler.Register(api.Group(""))

	briefHandler := briefhttp.New(mail, cfg.Mail.NotifyTo, cfg.Mail.ContactEmail, dep.Limiter, ratelimit.Config{
		Window: cfg.RateLimit.SubmitWindow,
		Max:    cfg.RateLimit.SubmitMax,
	})
	briefHandler.Register(api.Group(""))

	// Auth.
	svc := authsvc.New(
		authrepo.NewUserRepo(dep.SQLDB),
		authrepo.NewSessionStore(dep.Redis, cfg.Auth.SessionTTL),
		authrepo.NewFactorStore(dep.Redis),
		cfg.Auth.TOTPIssuer,
	)
	lockout := authsvc.NewLockoutTracker(authrepo.NewAttemptStore(dep.Redis))

	authHandler := authhttp.New(svc, authhttp.Options{
		Limiter:      dep.Limiter,
		LoginRate:    ratelimit.Config{Window: cfg.RateLimit.LoginWindow, Max: cfg.RateLimit.LoginMax},
		Lockout:      lockout,
		CookieName:   cfg.Auth.CookieName,
		SessionTTL:   cfg.Auth.SessionTTL,
		LoginTimeout: cfg.Auth.LoginTimeout,
	})
	authHandler.Register(api.Group("/auth"))

	// Gated admin console.
	admin := api.Group("/admin")
	admin.Use(authmw.Gate(svc, authmw.Options{CookieName: cfg.Auth.CookieName}))

	metaStore := board.NewRedisMetaStore(dep.Redis)
	writer := board.NewTriageWriter(leadStore)
	boardhttp.New(leadStore, metaStore, writer).Register(admin)

	composer := reply.NewComposer("Kah-Digital", cfg.Mail.ContactEmail, cfg.Mail.ContactPhone)
	replyHandler := replyhttp.New(replyhttp.Options{
		Composer: composer,
		Store:    leadStore,
		Mail:     mail,
		Limiter:  dep.Limiter,
		RateCfg:  ratelimit.Config{Window: cfg.RateLimit.ReplyWindow, Max: cfg.RateLimit.ReplyMax},
		ReplyTo:  cfg.Mail.ContactEmail,
	})
	replyHandler.Register(admin)

	return r
}
