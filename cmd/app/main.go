package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tutor-chat-client/internal/application"
	"tutor-chat-client/internal/config"
	"tutor-chat-client/internal/domain/ports/repository"
	"tutor-chat-client/internal/infra/jobservice"
	"tutor-chat-client/internal/infra/logging"
	"tutor-chat-client/internal/infra/memory"
	"tutor-chat-client/internal/infra/metrics"
	redisinfra "tutor-chat-client/internal/infra/redis"
	"tutor-chat-client/internal/infra/web"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store  repository.PendingTurnStore
		locker repository.Locker
	)
	if cfg.Runtime.Dev {
		log.Info().Msg("dev mode: using in-memory store with lease lock")
		store = memory.NewStore()
	} else {
		client, err := redisinfra.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect failed")
		}
		defer client.Close()
		store = redisinfra.NewTurnStore(client, log)
		locker = redisinfra.NewLockerFromClient(client)
	}

	jobs := jobservice.NewClient(&cfg.JobService, log)
	sink := &consoleSink{}
	coord := application.NewCoordinator(cfg, store, locker, jobs, sink, log)
	sink.coord = coord

	if err := coord.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("coordinator start failed")
	}
	defer coord.Close()

	admin := web.NewServer(&cfg.Admin, log)
	go func() {
		if err := admin.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("admin server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = admin.Shutdown(shutdownCtx)
	}()

	runREPL(ctx, coord)
}

// consoleSink prints the latest transcript entry whenever a session
// changes. It stands in for the rendering surface.
type consoleSink struct {
	coord *application.Coordinator
}

func (s *consoleSink) TranscriptUpdated(sessionID string) {
	if s.coord == nil {
		return
	}
	t := s.coord.Transcript(sessionID)
	if len(t.Entries) == 0 {
		return
	}
	e := t.Entries[len(t.Entries)-1]
	switch {
	case e.Pending && e.QueuePosition > 0:
		fmt.Printf("[%s] assistant: … (queue %d/%d)\n", sessionID, e.QueuePosition, e.QueueSize)
	case e.Pending:
		fmt.Printf("[%s] assistant: …\n", sessionID)
	default:
		fmt.Printf("[%s] %s: %s\n", sessionID, e.Role, e.Text)
	}
}

// runREPL reads lines from stdin. "/session <id>" switches sessions,
// "/quit" exits; anything else submits a turn to the current session.
func runREPL(ctx context.Context, coord *application.Coordinator) {
	session := "main"
	coord.EnterSession(ctx, session)

	sc := bufio.NewScanner(os.Stdin)
	fmt.Printf("session %q: type a message, /session <id>, or /quit\n", session)
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/session "):
			session = strings.TrimSpace(strings.TrimPrefix(line, "/session "))
			coord.EnterSession(ctx, session)
			fmt.Printf("switched to session %q\n", session)
		default:
			if _, err := coord.Submit(ctx, session, line, ""); err != nil {
				fmt.Printf("!! %v\n", err)
			}
		}
	}
}
