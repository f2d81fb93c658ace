/* Copyright (c) 2025 Trackmart Authors
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "errors"
    "net/http"
    "strconv"

    "github.com/gin-gonic/gin"
    "github.com/rs/zerolog"

    "github.com/example/trackmart/internal/config"
    "github.com/example/trackmart/internal/domain"
    "github.com/example/trackmart/internal/services"
)

type service interface {
    StartFullSync() error
    StartDimensionalLoad(ctx context.Context, g domain.Granularity) error
    Healthcheck(ctx context.Context) (int, error)
    GetLastRun(ctx context.Context) (*domain.SyncRun, error)
    ProjectOverview(ctx context.Context, projectID int64) (*services.Overview, error)
}

type Handlers struct {
    cfg config.Config
    log zerolog.Logger
    svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) JiraHealth(c *gin.Context) {
    n, err := h.svc.Healthcheck(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, gin.H{"ok": true, "projects": n})
}

func (h *Handlers) LastRun(c *gin.Context) {
    lr, err := h.svc.GetLastRun(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    if lr == nil {
        c.JSON(http.StatusOK, gin.H{"status": "never run"})
        return
    }
    c.JSON(http.StatusOK, lr)
}

func (h *Handlers) SyncNow(c *gin.Context) {
    if err := h.svc.StartFullSync(); err != nil {
        if errors.Is(err, services.ErrSyncInProgress) {
            c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
            return
        }
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func (h *Handlers) DimensionalLoad(c *gin.Context) {
    g, err := services.ParseGranularity(c.Query("granularity"))
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    if err := h.svc.StartDimensionalLoad(c.Request.Context(), g); err != nil {
        switch {
        case errors.Is(err, services.ErrSyncInProgress), errors.Is(err, services.ErrIntervalExists):
            c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
        default:
            c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        }
        return
    }
    c.JSON(http.StatusAccepted, gin.H{"status": "queued", "granularity": string(g)})
}

func (h *Handlers) ProjectOverview(c *gin.Context) {
    id, err := strconv.ParseInt(c.Param("id"), 10, 64)
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
        return
    }
    o, err := h.svc.ProjectOverview(c.Request.Context(), id)
    if err != nil {
        if errors.Is(err, services.ErrProjectNotFound) {
            c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
            return
        }
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, o)
}
