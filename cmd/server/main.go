package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/foodbook/api/internal/config"
	"github.com/foodbook/api/internal/database"
	"github.com/foodbook/api/internal/otp"
	"github.com/foodbook/api/internal/router"
	"github.com/foodbook/api/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()
	log.Println("Connected to database")

	rdb := otp.NewRedis(cfg.RedisAddr)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Unable to connect to redis: %v", err)
	}
	codes := otp.NewStore(rdb)

	var sender otp.Sender
	if cfg.SMTPHost != "" {
		sender = &otp.SMTPSender{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		}
	} else {
		log.Println("WARNING: SMTP_HOST not set, one-time codes will be logged instead of mailed")
		sender = otp.LogSender{}
	}

	hub := ws.NewHub()
	go hub.Run()

	queries := database.New(pool)
	r := router.New(cfg, queries, pool, codes, sender, hub)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}
