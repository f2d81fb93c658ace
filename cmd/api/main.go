/* Copyright (c) 2025 Trackmart Authors
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/example/trackmart/internal/adapters/jira"
    "github.com/example/trackmart/internal/adapters/telegram"
    "github.com/example/trackmart/internal/config"
    "github.com/example/trackmart/internal/http"
    "github.com/example/trackmart/internal/jobs"
    "github.com/example/trackmart/internal/logger"
    "github.com/example/trackmart/internal/repo"
    "github.com/example/trackmart/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    db := repo.MustOpen(ctx, cfg, log)
    defer db.Close()

    jc := jira.NewClient(cfg, log)
    tg := telegram.NewClient(cfg, log)

    repository := repo.NewRepository(db, log)
    svc := services.New(cfg, repository, jc, tg, log)

    router := http.NewRouter(cfg, log, svc)

    cr := jobs.NewCron(cfg, log, svc, repository)
    cr.Start()
    defer cr.Stop()

    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
