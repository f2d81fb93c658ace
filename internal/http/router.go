/* Copyright (c) 2025 Trackmart Authors
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"

    "github.com/example/trackmart/internal/config"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc service) *gin.Engine {
    if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(func(c *gin.Context) {
        c.Next()
        log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
    })

    h := NewHandlers(cfg, log, svc)

    r.GET("/healthz", h.Healthz)
    r.GET("/admin/health/jira", h.JiraHealth)
    r.GET("/admin/last-run", h.LastRun)
    r.POST("/admin/sync", h.SyncNow)
    r.POST("/admin/dimensional-load", h.DimensionalLoad)
    r.GET("/api/projects/:id/overview", h.ProjectOverview)

    return r
}
