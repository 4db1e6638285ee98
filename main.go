package main

import (
	"context"
	"log"
	"os"
	"time"

	"cyberchat/internal/api"
	"cyberchat/internal/auth"
	"cyberchat/internal/config"
	"cyberchat/internal/email"
	"cyberchat/internal/redis"
	"cyberchat/internal/service/account"
	"cyberchat/internal/service/ai"
	"cyberchat/internal/service/chat"
	"cyberchat/internal/store"
	"cyberchat/internal/store/memstore"
	"cyberchat/internal/store/sqlstore"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfgPath := os.Getenv("CYBERCHAT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("CYBERCHAT_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)

	var st store.Store
	if dbType == "memory" {
		st = memstore.New()
	} else {
		db, err := sqlstore.Open(dbType, cfg)
		if err != nil {
			log.Fatalf("open database: %v", err)
		}
		defer db.Close()
		// Create necessary tables: users, conversations, session_tokens
		if err := sqlstore.Migrate(db, dbType); err != nil {
			log.Fatalf("migrate database: %v", err)
		}
		st = sqlstore.New(db)
	}

	var cache *redis.Client
	if cfg.Redis.Host != "" {
		cache, err = redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer cache.Close()
	} else {
		log.Printf("redis not configured, using local session cache and rate limits")
	}

	provider := cfg.BasicConfig.Provider
	if provider == "" {
		provider = ai.ProviderOpenAI
	}
	generator, err := ai.NewGenerator(context.Background(), provider, cfg)
	if err != nil {
		log.Fatalf("init text generator: %v", err)
	}

	sessionTTL := time.Duration(cfg.BasicConfig.SessionTTLHours) * time.Hour
	authService := auth.NewService(st, cache, sessionTTL)

	sender := email.NewSender(cfg.SMTP)
	accounts := account.NewService(st, sender)

	chatTimeout := time.Duration(cfg.BasicConfig.ChatTimeoutSecs) * time.Second
	relay := chat.NewRelay(st, generator, chatTimeout)

	limitWindow := time.Duration(cfg.BasicConfig.RateLimitWindow) * time.Minute
	limiter := api.NewRateLimiter(cache, cfg.BasicConfig.RateLimitMax, limitWindow)

	handlers := api.NewHandler(accounts, relay, authService, limiter)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":5000"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
