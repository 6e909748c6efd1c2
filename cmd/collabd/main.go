package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"collabdocs/internal/authservice"
	"collabdocs/internal/cache"
	"collabdocs/internal/config"
	"collabdocs/internal/events"
	"collabdocs/internal/httpapi/handlers"
	"collabdocs/internal/httpapi/middleware"
	"collabdocs/internal/store"
	"collabdocs/internal/ws"
)

const usersDDL = `
CREATE TABLE IF NOT EXISTS users (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	username VARCHAR(64) NOT NULL,
	email VARCHAR(255) NOT NULL DEFAULT '',
	password_hash VARBINARY(72) NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
	PRIMARY KEY (id),
	UNIQUE KEY uq_users_username (username),
	UNIQUE KEY uq_users_email (email)
);`

const snapshotsDDL = `
CREATE TABLE IF NOT EXISTS document_snapshots (
	id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	document_id BIGINT UNSIGNED NOT NULL,
	saved_by BIGINT UNSIGNED NOT NULL,
	content LONGTEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (id),
	KEY idx_snapshots_document (document_id, created_at)
);`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	log.Printf("config: %+v", cfg)

	db, err := gorm.Open(gormmysql.Open(cfg.Mysql.DSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("open mysql failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("unwrap sql.DB failed: %v", err)
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		log.Fatalf("ping mysql failed: %v", err)
	}
	if err := migrate(ctx, db, sqlDB); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("ping redis failed: %v", err)
	}
	defer rdb.Close()

	kafkaCfg := sarama.NewConfig()
	// SyncProducer requires Return.Successes
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
	if err != nil {
		log.Fatalf("connect kafka failed: %v", err)
	}
	defer producer.Close()

	firehose := events.NewDispatcher(
		producer,
		cfg.Kafka.Topic,
		events.NewSemaphoreControl(),
		events.DispatcherOptions{
			QueueSize:   10_000,
			Workers:     4,
			MaxRetry:    3,
			BaseBackoff: 50 * time.Millisecond,
			MaxBackoff:  1 * time.Second,
		},
	)
	defer firehose.Close()

	presence := cache.NewRedisPresence(rdb)
	hub := ws.NewHub()
	manager := ws.NewManager(hub, presence, firehose)

	catalog := store.NewMySQLCatalog(db)
	snapshots := store.NewSnapshotStore(sqlDB)
	documents := handlers.NewDocuments(catalog, snapshots, sqlDB)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	auth := r.Group("/auth")
	auth.POST("/login", func(c *gin.Context) { authservice.Login(c, sqlDB) })
	auth.POST("/register", func(c *gin.Context) { authservice.Register(c, sqlDB) })
	auth.POST("/refresh", authservice.Refresh)

	api := r.Group("/api", middleware.Auth())
	documents.Register(api.Group("/documents"))

	relay := r.Group("/ws", middleware.Auth())
	relay.GET("", manager.WebSocketConnect)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	_ = r.Run(fmt.Sprintf(":%d", cfg.Running.Port))
}

func migrate(ctx context.Context, db *gorm.DB, sqlDB *sql.DB) error {
	if err := store.AutoMigrate(db); err != nil {
		return err
	}
	if _, err := sqlDB.ExecContext(ctx, usersDDL); err != nil {
		return err
	}
	if _, err := sqlDB.ExecContext(ctx, snapshotsDDL); err != nil {
		return err
	}
	return nil
}
