package main

import (
	"context"
	"log"
	"time"

	"sentinel-gateway/internal/api"
	"sentinel-gateway/internal/config"
	"sentinel-gateway/internal/database"
	"sentinel-gateway/internal/engine"
	"sentinel-gateway/internal/ingest"
	"sentinel-gateway/internal/lock"
	"sentinel-gateway/internal/models"
	"sentinel-gateway/internal/queue"
	"sentinel-gateway/internal/transport"
	"sentinel-gateway/internal/webhook"
	"sentinel-gateway/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	cfg := config.LoadConfig()

	db := database.InitGorm(cfg)

	ctx := context.Background()

	// Redis backs the admission lock and the delayed-step queue. Without it
	// the process still serves traffic on in-memory equivalents, which is
	// fine for a single node.
	var (
		locker lock.Locker
		jobs   queue.Queue
	)
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Redis unavailable (%v), falling back to in-memory lock and queue", err)
		locker = lock.NewMemoryLocker()
		jobs = queue.NewMemoryQueue()
	} else {
		locker = lock.NewRedisLocker(rdb, "sentinel:lock:")
		jobs = queue.NewRedisQueue(rdb, "sentinel:queue:")
	}

	senders := transport.NewRegistry()
	registerBotTransports(db, senders)

	ingestSvc := ingest.NewService(db)
	flowEngine := engine.NewEngine(db, locker, jobs, senders)
	if cfg.LockTTLSeconds > 0 {
		flowEngine.LockTTL = time.Duration(cfg.LockTTLSeconds) * time.Second
	}

	hub := ws.NewHub()
	go hub.Run()
	flowEngine.Events = hub

	pool := queue.NewPool(jobs, flowEngine.HandleStepJob, cfg.WorkerConcurrency)
	pool.Start(ctx)

	webhookHandler := webhook.NewHandler(db, ingestSvc, flowEngine)
	botHandler := api.NewBotHandler(db)
	sessionHandler := api.NewSessionHandler(db, ingestSvc)
	flowHandler := api.NewFlowHandler(db)
	triggerHandler := api.NewTriggerHandler(db)
	executionHandler := api.NewExecutionHandler(db)
	messageHandler := api.NewMessageHandler(db, senders)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Inbound message events from the messaging platform
	r.POST("/webhook/:platform", webhookHandler.HandleEvent)

	// Live dashboard events
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/bots", botHandler.GetBots)
		apiGroup.POST("/bots", botHandler.CreateBot)
		apiGroup.PUT("/bots/:id", botHandler.UpdateBot)
		apiGroup.DELETE("/bots/:id", botHandler.DeleteBot)

		apiGroup.GET("/sessions", sessionHandler.GetSessions)
		apiGroup.POST("/sessions", sessionHandler.ProvisionSession)
		apiGroup.GET("/sessions/:id/messages", sessionHandler.GetSessionMessages)

		apiGroup.GET("/flows", flowHandler.GetFlows)
		apiGroup.POST("/flows", flowHandler.CreateFlow)
		apiGroup.GET("/flows/:id", flowHandler.GetFlow)
		apiGroup.PUT("/flows/:id", flowHandler.UpdateFlow)
		apiGroup.POST("/flows/:id/clone", flowHandler.CloneFlow)
		apiGroup.DELETE("/flows/:id", flowHandler.DeleteFlow)

		apiGroup.GET("/triggers", triggerHandler.GetTriggers)
		apiGroup.POST("/triggers", triggerHandler.CreateTrigger)
		apiGroup.PUT("/triggers/:id", triggerHandler.UpdateTrigger)
		apiGroup.DELETE("/triggers/:id", triggerHandler.DeleteTrigger)

		apiGroup.GET("/executions", executionHandler.GetExecutions)
		apiGroup.GET("/executions/:id", executionHandler.GetExecution)
		apiGroup.POST("/executions/:id/cancel", executionHandler.CancelExecution)

		apiGroup.GET("/messages", messageHandler.GetMessages)
		apiGroup.POST("/send", messageHandler.SendMessage)
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

// registerBotTransports installs a platform sender for every bot with
// credentials. Bots created later get theirs on the next restart; operators
// can also re-PUT the bot to refresh credentials.
func registerBotTransports(db *gorm.DB, senders *transport.Registry) {
	var bots []models.Bot
	if err := db.Find(&bots).Error; err != nil {
		log.Printf("Failed to load bots for transport setup: %v", err)
		return
	}
	for _, bot := range bots {
		creds, err := bot.DecodeCredentials()
		if err != nil {
			log.Printf("Bot %s has malformed credentials, skipping transport: %v", bot.ID, err)
			continue
		}
		if creds.Token == "" || creds.PhoneNumberID == "" {
			log.Printf("Bot %s has no transport credentials, skipping", bot.ID)
			continue
		}
		senders.Register(bot.ID, transport.NewCloudSender(creds.Token, creds.PhoneNumberID, ""))
		log.Printf("Registered transport for bot %s (%s)", bot.Name, bot.ID)
	}
}
