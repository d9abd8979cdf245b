package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AmanSingh336699/ai-interview-battle/internal/config"
	"github.com/AmanSingh336699/ai-interview-battle/internal/server"
)

func main() {
	c, err := loadConfig()
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	s, err := server.Init(c)
	if err != nil {
		log.Fatalf("Init server failed: %v", err)
	}

	go s.Start()

	<-shutdown
	s.Shutdown()
}

func loadConfig() (server.Config, error) {
	c := defaultConfig()

	p := os.Getenv("CONFIG_PATH")
	if p == "" {
		return c, fmt.Errorf("CONFIG_PATH not set")
	}

	if err := config.Load(p, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}

func defaultConfig() server.Config {
	var c server.Config

	c.HTTP.Port = 8080
	c.Retention.Battle = 24 * time.Hour
	c.Retention.Answer = time.Hour
	c.Retention.Sweep = 10 * time.Minute
	c.Presence.TTL = 30 * time.Second
	c.Presence.Sweep = 10 * time.Second
	c.Oracle.ScoreTimeout = 15 * time.Second

	return c
}
