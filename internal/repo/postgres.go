package repo

import (
    "context"
    _ "embed"
    "errors"
    "time"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"
    "github.com/shopspring/decimal"

    "github.com/example/trackmart/internal/config"
    "github.com/example/trackmart/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    d := &DB{Pool: pool, log: log}
    if cfg.DBAutoMigrate {
        if err := d.EnsureSchema(ctx); err != nil { log.Fatal().Err(err).Msg("db migrate failed") }
    }
    return d
}

func (d *DB) EnsureSchema(ctx context.Context) error {
    _, err := d.Pool.Exec(ctx, schemaSQL)
    return err
}

func (d *DB) Close() { d.Pool.Close() }

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
    return ok, err
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
    var ok bool
    err := r.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
    if !ok && err == nil { return errors.New("advisory unlock returned false") }
    return err
}

// ---- Operational upserts (tracker sync) ----

func (r *Repository) UpsertProject(ctx context.Context, p domain.Project) (int64, error) {
    const q = `
        INSERT INTO projects(jira_id, key, name, description)
        VALUES($1,$2,$3,$4)
        ON CONFLICT(jira_id) DO UPDATE SET
            key=EXCLUDED.key,
            name=EXCLUDED.name,
            description=EXCLUDED.description
        RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q, p.JiraID, p.Key, p.Name, p.Description).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) UpsertIssueType(ctx context.Context, t domain.IssueType) (int64, error) {
    const q = `
        INSERT INTO issue_types(jira_id, name, description, subtask)
        VALUES($1,$2,$3,$4)
        ON CONFLICT(jira_id) DO UPDATE SET
            name=EXCLUDED.name,
            description=EXCLUDED.description,
            subtask=EXCLUDED.subtask
        RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q, t.JiraID, t.Name, t.Description, t.Subtask).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) UpsertStatusType(ctx context.Context, s domain.StatusType) (int64, error) {
    const q = `
        INSERT INTO status_types(jira_id, name, category_key)
        VALUES($1,$2,$3)
        ON CONFLICT(jira_id) DO UPDATE SET
            name=EXCLUDED.name,
            category_key=EXCLUDED.category_key
        RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q, s.JiraID, s.Name, s.CategoryKey).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) UpsertIssue(ctx context.Context, i domain.Issue) (int64, error) {
    const q = `
        INSERT INTO issues(jira_id, project_id, issue_type_id, status_id, assignee_id,
            summary, details, created_at, start_date, end_date, estimated_seconds)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT(jira_id) DO UPDATE SET
            project_id=EXCLUDED.project_id,
            issue_type_id=EXCLUDED.issue_type_id,
            status_id=EXCLUDED.status_id,
            assignee_id=EXCLUDED.assignee_id,
            summary=EXCLUDED.summary,
            details=EXCLUDED.details,
            created_at=EXCLUDED.created_at,
            start_date=EXCLUDED.start_date,
            end_date=EXCLUDED.end_date,
            estimated_seconds=EXCLUDED.estimated_seconds
        RETURNING id`
    var id int64
    row := r.db.Pool.QueryRow(ctx, q, i.JiraID, i.ProjectID, i.IssueTypeID, i.StatusID, i.AssigneeID,
        i.Summary, i.Details, i.CreatedAt, i.StartDate, i.EndDate, i.EstimatedSeconds)
    if err := row.Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) UpsertWorklog(ctx context.Context, w domain.Worklog) (int64, error) {
    const q = `
        INSERT INTO worklogs(jira_id, issue_id, author_id, seconds, logged_at, comment_text)
        VALUES($1,$2,$3,$4,$5,$6)
        ON CONFLICT(jira_id) DO UPDATE SET
            issue_id=EXCLUDED.issue_id,
            author_id=EXCLUDED.author_id,
            seconds=EXCLUDED.seconds,
            logged_at=EXCLUDED.logged_at,
            comment_text=EXCLUDED.comment_text
        RETURNING id`
    var id int64
    row := r.db.Pool.QueryRow(ctx, q, w.JiraID, w.IssueID, w.AuthorID, w.Seconds, w.LoggedAt, w.Comment)
    if err := row.Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
    const q = `SELECT id, jira_id, username, display_name, email, hourly_rate FROM users WHERE username=$1`
    u := &domain.User{}
    err := r.db.Pool.QueryRow(ctx, q, username).Scan(&u.ID, &u.JiraID, &u.Username, &u.DisplayName, &u.Email, &u.HourlyRate)
    if errors.Is(err, pgx.ErrNoRows) { return nil, nil }
    if err != nil { return nil, err }
    return u, nil
}

// GetOrCreateUser keys on username; a pre-existing row keeps its hourly_rate,
// which is maintained by hand rather than by the tracker.
func (r *Repository) GetOrCreateUser(ctx context.Context, u domain.User) (int64, error) {
    const q = `
        INSERT INTO users(jira_id, username, display_name, email)
        VALUES($1,$2,$3,$4)
        ON CONFLICT(username) DO UPDATE SET
            jira_id=EXCLUDED.jira_id,
            display_name=EXCLUDED.display_name,
            email=EXCLUDED.email
        RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q, u.JiraID, u.Username, u.DisplayName, u.Email).Scan(&id); err != nil { return 0, err }
    return id, nil
}

// RecomputeProjectDates derives a project's window from its issues.
func (r *Repository) RecomputeProjectDates(ctx context.Context, projectID int64) error {
    const q = `
        UPDATE projects SET
            start_date = sub.min_start,
            end_date   = sub.max_end
        FROM (
            SELECT MIN(COALESCE(start_date, created_at)) AS min_start, MAX(end_date) AS max_end
            FROM issues WHERE project_id = $1
        ) sub
        WHERE projects.id = $1`
    _, err := r.db.Pool.Exec(ctx, q, projectID)
    return err
}

// ---- Operational reads (dimension sync) ----

func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT id, jira_id, key, name, description, start_date, end_date FROM projects ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Project
    for rows.Next() {
        var p domain.Project
        if err := rows.Scan(&p.ID, &p.JiraID, &p.Key, &p.Name, &p.Description, &p.StartDate, &p.EndDate); err != nil { return nil, err }
        out = append(out, p)
    }
    return out, rows.Err()
}

func (r *Repository) GetProjectByID(ctx context.Context, id int64) (*domain.Project, error) {
    const q = `SELECT id, jira_id, key, name, description, start_date, end_date FROM projects WHERE id=$1`
    p := &domain.Project{}
    err := r.db.Pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.JiraID, &p.Key, &p.Name, &p.Description, &p.StartDate, &p.EndDate)
    if errors.Is(err, pgx.ErrNoRows) { return nil, nil }
    if err != nil { return nil, err }
    return p, nil
}

func (r *Repository) ListIssueTypes(ctx context.Context) ([]domain.IssueType, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT id, jira_id, name, description, subtask FROM issue_types ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.IssueType
    for rows.Next() {
        var t domain.IssueType
        if err := rows.Scan(&t.ID, &t.JiraID, &t.Name, &t.Description, &t.Subtask); err != nil { return nil, err }
        out = append(out, t)
    }
    return out, rows.Err()
}

func (r *Repository) ListStatusTypes(ctx context.Context) ([]domain.StatusType, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT id, jira_id, name, category_key FROM status_types ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.StatusType
    for rows.Next() {
        var s domain.StatusType
        if err := rows.Scan(&s.ID, &s.JiraID, &s.Name, &s.CategoryKey); err != nil { return nil, err }
        out = append(out, s)
    }
    return out, rows.Err()
}

func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
    rows, err := r.db.Pool.Query(ctx, `SELECT id, jira_id, username, display_name, email, hourly_rate FROM users ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.User
    for rows.Next() {
        var u domain.User
        if err := rows.Scan(&u.ID, &u.JiraID, &u.Username, &u.DisplayName, &u.Email, &u.HourlyRate); err != nil { return nil, err }
        out = append(out, u)
    }
    return out, rows.Err()
}

func (r *Repository) ListIssues(ctx context.Context) ([]domain.Issue, error) {
    const q = `SELECT id, jira_id, project_id, issue_type_id, status_id, assignee_id,
        summary, details, created_at, start_date, end_date, estimated_seconds
        FROM issues ORDER BY id`
    rows, err := r.db.Pool.Query(ctx, q)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Issue
    for rows.Next() {
        var i domain.Issue
        if err := rows.Scan(&i.ID, &i.JiraID, &i.ProjectID, &i.IssueTypeID, &i.StatusID, &i.AssigneeID,
            &i.Summary, &i.Details, &i.CreatedAt, &i.StartDate, &i.EndDate, &i.EstimatedSeconds); err != nil { return nil, err }
        out = append(out, i)
    }
    return out, rows.Err()
}

// ---- Dimension upserts ----

func (r *Repository) UpsertDimProject(ctx context.Context, d domain.DimProject) (domain.DimProject, error) {
    const q = `
        INSERT INTO dim_project(project_id, jira_id, name, start_date, end_date)
        VALUES($1,$2,$3,$4,$5)
        ON CONFLICT(jira_id) DO UPDATE SET
            project_id=EXCLUDED.project_id,
            name=EXCLUDED.name,
            start_date=EXCLUDED.start_date,
            end_date=EXCLUDED.end_date
        RETURNING id`
    if err := r.db.Pool.QueryRow(ctx, q, d.ProjectID, d.JiraID, d.Name, d.StartDate, d.EndDate).Scan(&d.ID); err != nil { return d, err }
    return d, nil
}

func (r *Repository) UpsertDimDeveloper(ctx context.Context, d domain.DimDeveloper) (domain.DimDeveloper, error) {
    const q = `
        INSERT INTO dim_developer(user_id, jira_id, display_name, hourly_rate)
        VALUES($1,$2,$3,$4)
        ON CONFLICT(user_id) DO UPDATE SET
            jira_id=EXCLUDED.jira_id,
            display_name=EXCLUDED.display_name,
            hourly_rate=EXCLUDED.hourly_rate
        RETURNING id`
    if err := r.db.Pool.QueryRow(ctx, q, d.UserID, d.JiraID, d.DisplayName, d.HourlyRate).Scan(&d.ID); err != nil { return d, err }
    return d, nil
}

func (r *Repository) UpsertDimStatus(ctx context.Context, d domain.DimStatus) (domain.DimStatus, error) {
    const q = `
        INSERT INTO dim_status(jira_id, status_id, name, category_key)
        VALUES($1,$2,$3,$4)
        ON CONFLICT(jira_id) DO UPDATE SET
            status_id=EXCLUDED.status_id,
            name=EXCLUDED.name,
            category_key=EXCLUDED.category_key
        RETURNING id`
    if err := r.db.Pool.QueryRow(ctx, q, d.JiraID, d.StatusID, d.Name, d.Category).Scan(&d.ID); err != nil { return d, err }
    return d, nil
}

func (r *Repository) UpsertDimIssueType(ctx context.Context, d domain.DimIssueType) (domain.DimIssueType, error) {
    const q = `
        INSERT INTO dim_issue_type(jira_id, issue_type_id, name)
        VALUES($1,$2,$3)
        ON CONFLICT(jira_id) DO UPDATE SET
            issue_type_id=EXCLUDED.issue_type_id,
            name=EXCLUDED.name
        RETURNING id`
    if err := r.db.Pool.QueryRow(ctx, q, d.JiraID, d.IssueTypeID, d.Name).Scan(&d.ID); err != nil { return d, err }
    return d, nil
}

func (r *Repository) UpsertDimIssue(ctx context.Context, d domain.DimIssue) (domain.DimIssue, error) {
    const q = `
        INSERT INTO dim_issue(issue_id, jira_id, dim_project_id, dim_issue_type_id, created_at, start_date)
        VALUES($1,$2,$3,$4,$5,$6)
        ON CONFLICT(jira_id) DO UPDATE SET
            issue_id=EXCLUDED.issue_id,
            dim_project_id=EXCLUDED.dim_project_id,
            dim_issue_type_id=EXCLUDED.dim_issue_type_id,
            created_at=EXCLUDED.created_at,
            start_date=EXCLUDED.start_date
        RETURNING id`
    if err := r.db.Pool.QueryRow(ctx, q, d.IssueID, d.JiraID, d.DimProjectID, d.DimIssueTypeID, d.CreatedAt, d.StartDate).Scan(&d.ID); err != nil { return d, err }
    return d, nil
}

// CreateTimeInterval inserts the bucket atomically. When an identical bucket
// already exists the insert is a no-op and created comes back false, which is
// how concurrent duplicate loads are rejected without a read-then-write race.
func (r *Repository) CreateTimeInterval(ctx context.Context, ti domain.TimeInterval) (domain.TimeInterval, bool, error) {
    const q = `
        INSERT INTO dim_time_interval(granularity, start_at, end_at)
        VALUES($1,$2,$3)
        ON CONFLICT(granularity, start_at, end_at) DO NOTHING
        RETURNING id`
    err := r.db.Pool.QueryRow(ctx, q, string(ti.Granularity), ti.Start, ti.End).Scan(&ti.ID)
    if errors.Is(err, pgx.ErrNoRows) { return ti, false, nil }
    if err != nil { return ti, false, err }
    return ti, true, nil
}

// ---- Fact writers, one transaction per builder ----

func (r *Repository) InsertProjectSnapshots(ctx context.Context, facts []domain.ProjectSnapshot) error {
    if len(facts) == 0 { return nil }
    const q = `INSERT INTO fact_project_snapshot(dim_project_id, interval_id, accumulated_cost, accumulated_minutes, projected_days)
        VALUES($1,$2,$3,$4,$5)`
    return r.insertFacts(ctx, len(facts), func(batch *pgx.Batch) {
        for _, f := range facts { batch.Queue(q, f.DimProjectID, f.IntervalID, f.AccumulatedCost, f.AccumulatedMinutes, f.ProjectedDays) }
    })
}

func (r *Repository) InsertIssueCounts(ctx context.Context, facts []domain.IssueCount) error {
    if len(facts) == 0 { return nil }
    const q = `INSERT INTO fact_issue_count(dim_project_id, dim_issue_type_id, dim_status_id, interval_id, total)
        VALUES($1,$2,$3,$4,$5)`
    return r.insertFacts(ctx, len(facts), func(batch *pgx.Batch) {
        for _, f := range facts { batch.Queue(q, f.DimProjectID, f.DimIssueTypeID, f.DimStatusID, f.IntervalID, f.Total) }
    })
}

func (r *Repository) InsertEfforts(ctx context.Context, facts []domain.Effort) error {
    if len(facts) == 0 { return nil }
    const q = `INSERT INTO fact_effort(dim_developer_id, dim_project_id, interval_id, accumulated_minutes, accumulated_cost)
        VALUES($1,$2,$3,$4,$5)`
    return r.insertFacts(ctx, len(facts), func(batch *pgx.Batch) {
        for _, f := range facts { batch.Queue(q, f.DimDeveloperID, f.DimProjectID, f.IntervalID, f.AccumulatedMinutes, f.AccumulatedCost) }
    })
}

func (r *Repository) insertFacts(ctx context.Context, n int, queue func(*pgx.Batch)) error {
    tx, err := r.db.Pool.Begin(ctx)
    if err != nil { return err }
    defer tx.Rollback(ctx)
    batch := &pgx.Batch{}
    queue(batch)
    br := tx.SendBatch(ctx, batch)
    for i := 0; i < n; i++ {
        if _, err := br.Exec(); err != nil { br.Close(); return err }
    }
    if err := br.Close(); err != nil { return err }
    return tx.Commit(ctx)
}

// ---- Aggregates for the fact builders ----

// WorklogTotals sums cost and minutes of a project's worklogs inside [start, end).
// Cost per entry is seconds/60 floored to whole minutes, then minutes/60 * rate.
func (r *Repository) WorklogTotals(ctx context.Context, projectID int64, start, end time.Time) (cost, minutes decimal.Decimal, err error) {
    const q = `
        SELECT
            COALESCE(SUM(FLOOR(w.seconds/60.0) / 60.0 * COALESCE(u.hourly_rate, 0)), 0),
            COALESCE(SUM(FLOOR(w.seconds/60.0)), 0)
        FROM worklogs w
        JOIN issues i ON i.id = w.issue_id
        LEFT JOIN users u ON u.id = w.author_id
        WHERE i.project_id = $1 AND w.logged_at >= $2 AND w.logged_at < $3`
    err = r.db.Pool.QueryRow(ctx, q, projectID, start, end).Scan(&cost, &minutes)
    return cost, minutes, err
}

// SumOpenEstimateSeconds totals remaining estimates over a project's open
// issues, open meaning no end date yet.
func (r *Repository) SumOpenEstimateSeconds(ctx context.Context, projectID int64) (int64, error) {
    const q = `SELECT COALESCE(SUM(estimated_seconds), 0) FROM issues
        WHERE project_id = $1 AND end_date IS NULL`
    var total int64
    err := r.db.Pool.QueryRow(ctx, q, projectID).Scan(&total)
    return total, err
}

// CountIssues counts a project's issues carrying the given type and status.
func (r *Repository) CountIssues(ctx context.Context, projectID, issueTypeID, statusID int64) (int64, error) {
    const q = `SELECT COUNT(*) FROM issues
        WHERE project_id = $1 AND issue_type_id = $2 AND status_id = $3`
    var total int64
    err := r.db.Pool.QueryRow(ctx, q, projectID, issueTypeID, statusID).Scan(&total)
    return total, err
}

// DevEffortRow is one developer/project pair's logged work inside a window.
type DevEffortRow struct {
    AuthorID  int64
    ProjectID int64
    Seconds   int64
}

// DevEffortTotals groups a window's worklog seconds by author and project.
// Entries without an author are dropped; they cannot land on a developer row.
func (r *Repository) DevEffortTotals(ctx context.Context, start, end time.Time) ([]DevEffortRow, error) {
    const q = `
        SELECT w.author_id, i.project_id, COALESCE(SUM(w.seconds), 0)
        FROM worklogs w
        JOIN issues i ON i.id = w.issue_id
        WHERE w.author_id IS NOT NULL AND w.logged_at >= $1 AND w.logged_at < $2
        GROUP BY w.author_id, i.project_id
        ORDER BY w.author_id, i.project_id`
    rows, err := r.db.Pool.Query(ctx, q, start, end)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []DevEffortRow
    for rows.Next() {
        var dr DevEffortRow
        if err := rows.Scan(&dr.AuthorID, &dr.ProjectID, &dr.Seconds); err != nil { return nil, err }
        out = append(out, dr)
    }
    return out, rows.Err()
}

// ---- Aggregates for the project overview ----

// CountIssuesCreatedBefore counts a project's issues created before the cutoff.
func (r *Repository) CountIssuesCreatedBefore(ctx context.Context, projectID int64, cutoff time.Time) (int64, error) {
    const q = `SELECT COUNT(*) FROM issues WHERE project_id=$1 AND created_at < $2`
    var total int64
    err := r.db.Pool.QueryRow(ctx, q, projectID, cutoff).Scan(&total)
    return total, err
}

// CountIssuesDoneBefore counts a project's issues finished before the cutoff.
func (r *Repository) CountIssuesDoneBefore(ctx context.Context, projectID int64, cutoff time.Time) (int64, error) {
    const q = `SELECT COUNT(*) FROM issues WHERE project_id=$1 AND end_date IS NOT NULL AND end_date < $2`
    var total int64
    err := r.db.Pool.QueryRow(ctx, q, projectID, cutoff).Scan(&total)
    return total, err
}

func (r *Repository) TotalWorklogSeconds(ctx context.Context, projectID int64) (int64, error) {
    const q = `SELECT COALESCE(SUM(w.seconds), 0) FROM worklogs w
        JOIN issues i ON i.id = w.issue_id WHERE i.project_id = $1`
    var total int64
    err := r.db.Pool.QueryRow(ctx, q, projectID).Scan(&total)
    return total, err
}

// TypeCountRow is an issue-type name with its project-wide issue total.
type TypeCountRow struct {
    Name  string
    Total int64
}

func (r *Repository) IssueCountsByType(ctx context.Context, projectID int64) ([]TypeCountRow, error) {
    const q = `
        SELECT COALESCE(t.name, ''), COUNT(*)
        FROM issues i
        LEFT JOIN issue_types t ON t.id = i.issue_type_id
        WHERE i.project_id = $1
        GROUP BY 1 ORDER BY 2 DESC, 1`
    rows, err := r.db.Pool.Query(ctx, q, projectID)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []TypeCountRow
    for rows.Next() {
        var tc TypeCountRow
        if err := rows.Scan(&tc.Name, &tc.Total); err != nil { return nil, err }
        out = append(out, tc)
    }
    return out, rows.Err()
}

// DevHoursRow is one developer's total logged seconds on a project.
type DevHoursRow struct {
    UserID      int64
    DisplayName string
    Seconds     int64
}

func (r *Repository) DevHoursByProject(ctx context.Context, projectID int64) ([]DevHoursRow, error) {
    const q = `
        SELECT u.id, u.display_name, COALESCE(SUM(w.seconds), 0)
        FROM worklogs w
        JOIN issues i ON i.id = w.issue_id
        JOIN users u ON u.id = w.author_id
        WHERE i.project_id = $1
        GROUP BY u.id, u.display_name
        ORDER BY 3 DESC`
    rows, err := r.db.Pool.Query(ctx, q, projectID)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []DevHoursRow
    for rows.Next() {
        var dh DevHoursRow
        if err := rows.Scan(&dh.UserID, &dh.DisplayName, &dh.Seconds); err != nil { return nil, err }
        out = append(out, dh)
    }
    return out, rows.Err()
}

// CountPendingIssues counts a project's issues whose status category still
// marks them as not started.
func (r *Repository) CountPendingIssues(ctx context.Context, projectID int64) (int64, error) {
    const q = `
        SELECT COUNT(*) FROM issues i
        JOIN status_types s ON s.id = i.status_id
        WHERE i.project_id = $1 AND s.category_key IN ('new','open','pending','todo','backlog')`
    var total int64
    err := r.db.Pool.QueryRow(ctx, q, projectID).Scan(&total)
    return total, err
}

// ---- Sync run bookkeeping ----

func (r *Repository) StartSyncRun(ctx context.Context) (int64, error) {
    const q = `INSERT INTO sync_runs(started_at, success) VALUES(now(), false) RETURNING id`
    var id int64
    if err := r.db.Pool.QueryRow(ctx, q).Scan(&id); err != nil { return 0, err }
    return id, nil
}

func (r *Repository) FinishSyncRun(ctx context.Context, id int64, projects, issues int, success bool, errStr string) error {
    const q = `UPDATE sync_runs SET finished_at=now(), projects_synced=$2, issues_synced=$3, success=$4, error=$5 WHERE id=$1`
    _, err := r.db.Pool.Exec(ctx, q, id, projects, issues, success, errStr)
    return err
}

func (r *Repository) GetLastSyncRun(ctx context.Context) (*domain.SyncRun, error) {
    const q = `SELECT id, started_at, finished_at, projects_synced, issues_synced, success, error
        FROM sync_runs ORDER BY id DESC LIMIT 1`
    sr := &domain.SyncRun{}
    err := r.db.Pool.QueryRow(ctx, q).Scan(&sr.ID, &sr.StartedAt, &sr.FinishedAt, &sr.ProjectsSynced, &sr.IssuesSynced, &sr.Success, &sr.Error)
    if errors.Is(err, pgx.ErrNoRows) { return nil, nil }
    if err != nil { return nil, err }
    return sr, nil
}
