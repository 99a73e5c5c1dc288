package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/opencivic/memberhub/internal/api"
	"github.com/opencivic/memberhub/internal/auth"
	"github.com/opencivic/memberhub/internal/config"
	"github.com/opencivic/memberhub/internal/mailer"
	"github.com/opencivic/memberhub/internal/pkg/distlock"
	"github.com/opencivic/memberhub/internal/pkg/httputil"
	"github.com/opencivic/memberhub/internal/repository/postgres"
	"github.com/opencivic/memberhub/internal/service/campaign"
	"github.com/opencivic/memberhub/internal/service/domains"
	"github.com/opencivic/memberhub/internal/service/permission"
	"github.com/opencivic/memberhub/internal/ssl"
	"github.com/opencivic/memberhub/internal/storage"
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret (or JWT_SECRET) is required")
	}
	httputil.SetExposeInternals(!cfg.IsProduction())

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	// Database
	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		log.Fatalf("Database ping failed: %v", err)
	}
	log.Println("Database connected")

	// Redis is optional; the dispatch lock falls back to PG advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.Enabled && cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Printf("Warning: invalid redis url: %v — using PG advisory locks", err)
		} else {
			redisClient = redis.NewClient(opts)
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
			err = redisClient.Ping(pingCtx).Err()
			pingCancel()
			if err != nil {
				log.Printf("Warning: Redis connection failed: %v — using PG advisory locks", err)
				redisClient.Close()
				redisClient = nil
			} else {
				log.Println("Redis connected (distributed locking and permission cache enabled)")
			}
		}
	}

	// Repositories
	orgRepo := postgres.NewOrgRepo(db)
	domainRepo := postgres.NewDomainRepo(db)
	campaignRepo := postgres.NewCampaignRepo(db)
	subscriberRepo := postgres.NewSubscriberRepo(db)
	memberRepo := postgres.NewMemberRepo(db)
	committeeRepo := postgres.NewCommitteeRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	documentRepo := postgres.NewDocumentRepo(db)

	// Object storage
	var objects storage.ObjectStore = storage.Disabled{}
	if cfg.Storage.Enabled {
		s3Store, err := storage.NewS3Store(context.Background(), cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage: %v", err)
		}
		objects = s3Store
		log.Printf("Document storage: s3://%s (%s)", cfg.Storage.Bucket, cfg.Storage.Region)
	} else {
		log.Println("Document storage not configured — document uploads disabled")
	}

	// Services
	resolver := domains.NewNetResolver(cfg.Domains.LookupTimeout())
	domainSvc := domains.NewService(domainRepo, resolver, cfg.Domains.TXTPrefix)
	issuer := ssl.NewIssuer(cfg.Domains, cfg.Environment, nil)

	lockFactory := func(key string) distlock.DistLock {
		return distlock.NewLock(redisClient, db, key, 10*time.Minute)
	}
	sender := mailer.New(cfg.Mail, nil)
	campaignSvc := campaign.NewService(campaignRepo, subscriberRepo, sender, cfg.Dispatch, lockFactory)

	permSvc := permission.NewService(memberRepo, redisClient, 5*time.Minute)

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.TokenIssuer)

	router := api.SetupRoutes(api.Deps{
		Cfg:         cfg,
		Verifier:    verifier,
		Domains:     domainSvc,
		Issuer:      issuer,
		Campaigns:   campaignSvc,
		Permissions: permSvc,
		Orgs:        orgRepo,
		Lists:       subscriberRepo,
		Members:     memberRepo,
		Committees:  committeeRepo,
		Events:      eventRepo,
		Documents:   documentRepo,
		Objects:     objects,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on %s (env: %s)", srv.Addr, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("Server stopped")
}
