package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/AmanSingh336699/ai-interview-battle/internal/api"
	"github.com/AmanSingh336699/ai-interview-battle/internal/battle"
	"github.com/AmanSingh336699/ai-interview-battle/internal/broadcast"
	"github.com/AmanSingh336699/ai-interview-battle/internal/event"
	"github.com/AmanSingh336699/ai-interview-battle/internal/oracle"
	"github.com/AmanSingh336699/ai-interview-battle/internal/store"
	"github.com/AmanSingh336699/ai-interview-battle/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Battle struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Oracle struct {
		APIKey       string
		BaseURL      string
		Model        string
		ScoreTimeout time.Duration
	}

	Retention struct {
		Battle time.Duration
		Answer time.Duration
		Sweep  time.Duration
	}

	Presence struct {
		TTL   time.Duration
		Sweep time.Duration
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			pubsub redis.UniversalClient
		}

		postgres struct {
			battle *pgxpool.Pool
		}
	}

	service struct {
		battle   *battle.Service
		presence *broadcast.Presence
		reaper   *store.Reaper
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Pubsub.Addrs,
		Password: s.c.Redis.Pubsub.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis.pubsub = r
	return nil
}

func (s *Server) initPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p := s.c.Postgres.Battle
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", p.User, p.Pass, p.Addr, p.Name))
	if err != nil {
		return err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return err
	}

	if err := db.Ping(ctx); err != nil {
		return err
	}

	s.infra.postgres.battle = db
	return nil
}

func (s *Server) initService() error {
	pg := store.NewPostgres(s.infra.postgres.battle)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pg.Migrate(ctx); err != nil {
		return err
	}

	s.service.battle = battle.NewService(battle.Config{
		Battles: pg,
		Answers: pg,
		Oracle: oracle.NewOpenAI(oracle.Config{
			APIKey:  s.c.Oracle.APIKey,
			BaseURL: s.c.Oracle.BaseURL,
			Model:   s.c.Oracle.Model,
		}),
		EventBus:     s.eb,
		ScoreTimeout: s.c.Oracle.ScoreTimeout,
	})

	broadcast.NewPublisher(broadcast.PublisherConfig{
		EventBus: s.eb,
		Redis:    s.infra.redis.pubsub,
		Prefix:   s.c.Redis.Pubsub.Prefix,
	})

	s.service.presence = broadcast.NewPresence(broadcast.PresenceConfig{
		Redis:         s.infra.redis.pubsub,
		EventBus:      s.eb,
		Prefix:        s.c.Redis.Pubsub.Prefix,
		TTL:           s.c.Presence.TTL,
		SweepInterval: s.c.Presence.Sweep,
	})
	s.service.presence.Start()

	s.service.reaper = store.NewReaper(store.ReaperConfig{
		Purger:          pg,
		BattleRetention: s.c.Retention.Battle,
		AnswerRetention: s.c.Retention.Answer,
		Interval:        s.c.Retention.Sweep,
	})
	s.service.reaper.Start()

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.HTTPLogger())

	api.New(api.Config{
		Engine:   e,
		Battle:   s.service.battle,
		Presence: s.service.presence,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.service.presence.Stop()
	s.service.reaper.Stop()
	s.eb.Stop()

	s.infra.postgres.battle.Close()
	if err := s.infra.redis.pubsub.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
