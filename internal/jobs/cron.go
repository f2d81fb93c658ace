package jobs

import (
    "context"
    "errors"
    "time"

    "github.com/robfig/cron/v3"
    "github.com/rs/zerolog"

    "github.com/example/trackmart/internal/config"
    "github.com/example/trackmart/internal/domain"
    "github.com/example/trackmart/internal/repo"
    "github.com/example/trackmart/internal/services"
)

type service interface {
    FullSync(ctx context.Context) error
    RunDimensionalLoad(ctx context.Context, g domain.Granularity) error
    Healthcheck(ctx context.Context) (int, error)
}

type Cron struct {
    cfg  config.Config
    log  zerolog.Logger
    svc  service
    repo *repo.Repository
    c    *cron.Cron
}

func NewCron(cfg config.Config, log zerolog.Logger, svc service, r *repo.Repository) *Cron {
    loc, _ := time.LoadLocation(cfg.TZ)
    c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
    cr := &Cron{cfg: cfg, log: log, svc: svc, repo: r, c: c}
    _, _ = c.AddFunc(cfg.DimensionalCron, cr.daily)
    _, _ = c.AddFunc(cfg.HealthcheckCron, cr.healthcheck)
    return cr
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { cr.c.Stop() }

// daily syncs the tracker and loads the DAY bucket. The advisory lock keeps
// replicas from running the same load; a bucket already loaded by hand is
// skipped quietly.
func (cr *Cron) daily() {
    ctx, cancel := context.WithTimeout(context.Background(), cr.cfg.SyncTimeout); defer cancel()
    const lockKey int64 = 727274
    ok, err := cr.repo.TryAdvisoryLock(ctx, lockKey)
    if err != nil { cr.log.Error().Err(err).Msg("cron: lock error"); return }
    if !ok { cr.log.Info().Msg("cron: already running elsewhere"); return }
    defer func() { _ = cr.repo.AdvisoryUnlock(context.Background(), lockKey) }()

    cr.log.Info().Msg("cron: daily sync and load")
    if err := cr.svc.FullSync(ctx); err != nil {
        cr.log.Error().Err(err).Msg("cron: full sync failed")
        return
    }
    if err := cr.svc.RunDimensionalLoad(ctx, domain.GranularityDay); err != nil {
        if errors.Is(err, services.ErrIntervalExists) {
            cr.log.Info().Msg("cron: day bucket already loaded")
            return
        }
        cr.log.Error().Err(err).Msg("cron: dimensional load failed")
    }
}

func (cr *Cron) healthcheck() {
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second); defer cancel()
    n, err := cr.svc.Healthcheck(ctx)
    if err != nil { return }
    cr.log.Debug().Int("projects", n).Msg("cron: tracker healthy")
}
