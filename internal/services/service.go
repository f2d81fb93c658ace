/* Copyright (c) 2025 Trackmart Authors
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "errors"
    "sync"
    "time"

    "github.com/rs/zerolog"
    "github.com/shopspring/decimal"

    "github.com/example/trackmart/internal/config"
    "github.com/example/trackmart/internal/domain"
    "github.com/example/trackmart/internal/repo"
)

// SecondsPerWorkday converts remaining estimate seconds into projected
// working days: one workday is eight hours.
const SecondsPerWorkday = 28800

var (
    // ErrSyncInProgress rejects a sync request while another one runs.
    ErrSyncInProgress = errors.New("sync already in progress")
    // ErrIntervalExists rejects a dimensional load whose bucket was
    // already built.
    ErrIntervalExists = errors.New("time interval already loaded")
)

// Tracker is the slice of the issue-tracker API the sync needs.
type Tracker interface {
    ListProjects(ctx context.Context) ([]map[string]any, error)
    ListIssueTypes(ctx context.Context) ([]map[string]any, error)
    ListStatuses(ctx context.Context) ([]map[string]any, error)
    SearchIssues(ctx context.Context, projectKey string, startAt, maxResults int) ([]map[string]any, int, error)
    FetchUser(ctx context.Context, accountID string) (map[string]any, error)
    CountProjects(ctx context.Context) (int, error)
}

// Notifier delivers operational alerts. Delivery is best effort.
type Notifier interface {
    Notify(ctx context.Context, text string)
}

// Store is the persistence surface the services run against. The pgx
// repository implements it; tests swap in an in-memory fake.
type Store interface {
    // operational
    UpsertProject(ctx context.Context, p domain.Project) (int64, error)
    UpsertIssueType(ctx context.Context, t domain.IssueType) (int64, error)
    UpsertStatusType(ctx context.Context, s domain.StatusType) (int64, error)
    UpsertIssue(ctx context.Context, i domain.Issue) (int64, error)
    UpsertWorklog(ctx context.Context, w domain.Worklog) (int64, error)
    GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
    GetOrCreateUser(ctx context.Context, u domain.User) (int64, error)
    RecomputeProjectDates(ctx context.Context, projectID int64) error
    ListProjects(ctx context.Context) ([]domain.Project, error)
    GetProjectByID(ctx context.Context, id int64) (*domain.Project, error)
    ListIssueTypes(ctx context.Context) ([]domain.IssueType, error)
    ListStatusTypes(ctx context.Context) ([]domain.StatusType, error)
    ListUsers(ctx context.Context) ([]domain.User, error)
    ListIssues(ctx context.Context) ([]domain.Issue, error)

    // dimensions
    UpsertDimProject(ctx context.Context, d domain.DimProject) (domain.DimProject, error)
    UpsertDimDeveloper(ctx context.Context, d domain.DimDeveloper) (domain.DimDeveloper, error)
    UpsertDimStatus(ctx context.Context, d domain.DimStatus) (domain.DimStatus, error)
    UpsertDimIssueType(ctx context.Context, d domain.DimIssueType) (domain.DimIssueType, error)
    UpsertDimIssue(ctx context.Context, d domain.DimIssue) (domain.DimIssue, error)
    CreateTimeInterval(ctx context.Context, ti domain.TimeInterval) (domain.TimeInterval, bool, error)

    // facts
    InsertProjectSnapshots(ctx context.Context, facts []domain.ProjectSnapshot) error
    InsertIssueCounts(ctx context.Context, facts []domain.IssueCount) error
    InsertEfforts(ctx context.Context, facts []domain.Effort) error

    // aggregates
    WorklogTotals(ctx context.Context, projectID int64, start, end time.Time) (cost, minutes decimal.Decimal, err error)
    SumOpenEstimateSeconds(ctx context.Context, projectID int64) (int64, error)
    CountIssues(ctx context.Context, projectID, issueTypeID, statusID int64) (int64, error)
    DevEffortTotals(ctx context.Context, start, end time.Time) ([]repo.DevEffortRow, error)

    // overview
    CountIssuesCreatedBefore(ctx context.Context, projectID int64, cutoff time.Time) (int64, error)
    CountIssuesDoneBefore(ctx context.Context, projectID int64, cutoff time.Time) (int64, error)
    TotalWorklogSeconds(ctx context.Context, projectID int64) (int64, error)
    IssueCountsByType(ctx context.Context, projectID int64) ([]repo.TypeCountRow, error)
    DevHoursByProject(ctx context.Context, projectID int64) ([]repo.DevHoursRow, error)
    CountPendingIssues(ctx context.Context, projectID int64) (int64, error)

    // bookkeeping
    StartSyncRun(ctx context.Context) (int64, error)
    FinishSyncRun(ctx context.Context, id int64, projects, issues int, success bool, errStr string) error
    GetLastSyncRun(ctx context.Context) (*domain.SyncRun, error)
}

type Service struct {
    cfg     config.Config
    store   Store
    tracker Tracker
    notify  Notifier
    log     zerolog.Logger

    // syncMu guards FullSync and RunDimensionalLoad within this process.
    // Cross-process exclusion is handled by advisory locks in the jobs layer.
    syncMu sync.Mutex
}

func New(cfg config.Config, store Store, tracker Tracker, notify Notifier, log zerolog.Logger) *Service {
    return &Service{cfg: cfg, store: store, tracker: tracker, notify: notify, log: log}
}

// Healthcheck probes the tracker API and reports how many projects it sees.
func (s *Service) Healthcheck(ctx context.Context) (int, error) {
    n, err := s.tracker.CountProjects(ctx)
    if err != nil {
        s.log.Error().Err(err).Msg("tracker healthcheck failed")
        if s.notify != nil { s.notify.Notify(ctx, "trackmart: tracker healthcheck failed: "+err.Error()) }
        return 0, err
    }
    return n, nil
}

// GetLastRun reports the most recent sync run, or nil when none has run yet.
func (s *Service) GetLastRun(ctx context.Context) (*domain.SyncRun, error) {
    return s.store.GetLastSyncRun(ctx)
}
