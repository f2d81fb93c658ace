package services

import (
    "context"
    "fmt"
    "sort"
    "time"

    "github.com/shopspring/decimal"

    "github.com/example/trackmart/internal/domain"
    "github.com/example/trackmart/internal/repo"
)

// fakeStore mirrors the repository's semantics in memory: upserts key on
// tracker ids, aggregates floor worklog minutes the way the SQL does.
type fakeStore struct {
    nextID int64

    projects    []domain.Project
    issueTypes  []domain.IssueType
    statusTypes []domain.StatusType
    users       []domain.User
    issues      []domain.Issue
    worklogs    []domain.Worklog

    dimProjects   []domain.DimProject
    dimDevelopers []domain.DimDeveloper
    dimStatuses   []domain.DimStatus
    dimIssueTypes []domain.DimIssueType
    dimIssues     []domain.DimIssue
    intervals     []domain.TimeInterval

    snapshots []domain.ProjectSnapshot
    counts    []domain.IssueCount
    efforts   []domain.Effort
    runs      []domain.SyncRun
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (f *fakeStore) id() int64 { f.nextID++; return f.nextID }

func (f *fakeStore) UpsertProject(_ context.Context, p domain.Project) (int64, error) {
    for i := range f.projects {
        if f.projects[i].JiraID == p.JiraID {
            p.ID = f.projects[i].ID
            p.StartDate, p.EndDate = f.projects[i].StartDate, f.projects[i].EndDate
            f.projects[i] = p
            return p.ID, nil
        }
    }
    p.ID = f.id()
    f.projects = append(f.projects, p)
    return p.ID, nil
}

func (f *fakeStore) UpsertIssueType(_ context.Context, t domain.IssueType) (int64, error) {
    for i := range f.issueTypes {
        if f.issueTypes[i].JiraID == t.JiraID { t.ID = f.issueTypes[i].ID; f.issueTypes[i] = t; return t.ID, nil }
    }
    t.ID = f.id()
    f.issueTypes = append(f.issueTypes, t)
    return t.ID, nil
}

func (f *fakeStore) UpsertStatusType(_ context.Context, s domain.StatusType) (int64, error) {
    for i := range f.statusTypes {
        if f.statusTypes[i].JiraID == s.JiraID { s.ID = f.statusTypes[i].ID; f.statusTypes[i] = s; return s.ID, nil }
    }
    s.ID = f.id()
    f.statusTypes = append(f.statusTypes, s)
    return s.ID, nil
}

func (f *fakeStore) UpsertIssue(_ context.Context, i domain.Issue) (int64, error) {
    for k := range f.issues {
        if f.issues[k].JiraID == i.JiraID { i.ID = f.issues[k].ID; f.issues[k] = i; return i.ID, nil }
    }
    i.ID = f.id()
    f.issues = append(f.issues, i)
    return i.ID, nil
}

func (f *fakeStore) UpsertWorklog(_ context.Context, w domain.Worklog) (int64, error) {
    for k := range f.worklogs {
        if f.worklogs[k].JiraID == w.JiraID { w.ID = f.worklogs[k].ID; f.worklogs[k] = w; return w.ID, nil }
    }
    w.ID = f.id()
    f.worklogs = append(f.worklogs, w)
    return w.ID, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
    for i := range f.users {
        if f.users[i].Username == username { u := f.users[i]; return &u, nil }
    }
    return nil, nil
}

func (f *fakeStore) GetOrCreateUser(_ context.Context, u domain.User) (int64, error) {
    for i := range f.users {
        if f.users[i].Username == u.Username {
            u.ID, u.HourlyRate = f.users[i].ID, f.users[i].HourlyRate
            f.users[i] = u
            return u.ID, nil
        }
    }
    u.ID = f.id()
    f.users = append(f.users, u)
    return u.ID, nil
}

func (f *fakeStore) RecomputeProjectDates(_ context.Context, projectID int64) error {
    var minStart, maxEnd *time.Time
    for _, i := range f.issues {
        if i.ProjectID != projectID { continue }
        start := i.StartDate
        if start == nil { start = i.CreatedAt }
        if start != nil && (minStart == nil || start.Before(*minStart)) { minStart = start }
        if i.EndDate != nil && (maxEnd == nil || i.EndDate.After(*maxEnd)) { maxEnd = i.EndDate }
    }
    for k := range f.projects {
        if f.projects[k].ID == projectID { f.projects[k].StartDate, f.projects[k].EndDate = minStart, maxEnd }
    }
    return nil
}

func (f *fakeStore) ListProjects(context.Context) ([]domain.Project, error)      { return f.projects, nil }
func (f *fakeStore) ListIssueTypes(context.Context) ([]domain.IssueType, error)  { return f.issueTypes, nil }
func (f *fakeStore) ListStatusTypes(context.Context) ([]domain.StatusType, error) { return f.statusTypes, nil }
func (f *fakeStore) ListUsers(context.Context) ([]domain.User, error)            { return f.users, nil }
func (f *fakeStore) ListIssues(context.Context) ([]domain.Issue, error)          { return f.issues, nil }

func (f *fakeStore) GetProjectByID(_ context.Context, id int64) (*domain.Project, error) {
    for i := range f.projects {
        if f.projects[i].ID == id { p := f.projects[i]; return &p, nil }
    }
    return nil, nil
}

func (f *fakeStore) UpsertDimProject(_ context.Context, d domain.DimProject) (domain.DimProject, error) {
    for i := range f.dimProjects {
        if f.dimProjects[i].JiraID == d.JiraID { d.ID = f.dimProjects[i].ID; f.dimProjects[i] = d; return d, nil }
    }
    d.ID = f.id()
    f.dimProjects = append(f.dimProjects, d)
    return d, nil
}

func (f *fakeStore) UpsertDimDeveloper(_ context.Context, d domain.DimDeveloper) (domain.DimDeveloper, error) {
    for i := range f.dimDevelopers {
        if f.dimDevelopers[i].UserID == d.UserID { d.ID = f.dimDevelopers[i].ID; f.dimDevelopers[i] = d; return d, nil }
    }
    d.ID = f.id()
    f.dimDevelopers = append(f.dimDevelopers, d)
    return d, nil
}

func (f *fakeStore) UpsertDimStatus(_ context.Context, d domain.DimStatus) (domain.DimStatus, error) {
    for i := range f.dimStatuses {
        if f.dimStatuses[i].JiraID == d.JiraID { d.ID = f.dimStatuses[i].ID; f.dimStatuses[i] = d; return d, nil }
    }
    d.ID = f.id()
    f.dimStatuses = append(f.dimStatuses, d)
    return d, nil
}

func (f *fakeStore) UpsertDimIssueType(_ context.Context, d domain.DimIssueType) (domain.DimIssueType, error) {
    for i := range f.dimIssueTypes {
        if f.dimIssueTypes[i].JiraID == d.JiraID { d.ID = f.dimIssueTypes[i].ID; f.dimIssueTypes[i] = d; return d, nil }
    }
    d.ID = f.id()
    f.dimIssueTypes = append(f.dimIssueTypes, d)
    return d, nil
}

func (f *fakeStore) UpsertDimIssue(_ context.Context, d domain.DimIssue) (domain.DimIssue, error) {
    for i := range f.dimIssues {
        if f.dimIssues[i].JiraID == d.JiraID { d.ID = f.dimIssues[i].ID; f.dimIssues[i] = d; return d, nil }
    }
    d.ID = f.id()
    f.dimIssues = append(f.dimIssues, d)
    return d, nil
}

func (f *fakeStore) CreateTimeInterval(_ context.Context, ti domain.TimeInterval) (domain.TimeInterval, bool, error) {
    for _, x := range f.intervals {
        if x.Granularity == ti.Granularity && x.Start.Equal(ti.Start) && x.End.Equal(ti.End) {
            return x, false, nil
        }
    }
    ti.ID = f.id()
    f.intervals = append(f.intervals, ti)
    return ti, true, nil
}

func (f *fakeStore) InsertProjectSnapshots(_ context.Context, facts []domain.ProjectSnapshot) error {
    f.snapshots = append(f.snapshots, facts...)
    return nil
}

func (f *fakeStore) InsertIssueCounts(_ context.Context, facts []domain.IssueCount) error {
    f.counts = append(f.counts, facts...)
    return nil
}

func (f *fakeStore) InsertEfforts(_ context.Context, facts []domain.Effort) error {
    f.efforts = append(f.efforts, facts...)
    return nil
}

func (f *fakeStore) rateFor(userID *int64) decimal.Decimal {
    if userID == nil { return decimal.Zero }
    for _, u := range f.users {
        if u.ID == *userID && u.HourlyRate.Valid { return u.HourlyRate.Decimal }
    }
    return decimal.Zero
}

func (f *fakeStore) issueByID(id int64) *domain.Issue {
    for i := range f.issues {
        if f.issues[i].ID == id { return &f.issues[i] }
    }
    return nil
}

func (f *fakeStore) WorklogTotals(_ context.Context, projectID int64, start, end time.Time) (decimal.Decimal, decimal.Decimal, error) {
    cost, minutes := decimal.Zero, decimal.Zero
    for _, w := range f.worklogs {
        issue := f.issueByID(w.IssueID)
        if issue == nil || issue.ProjectID != projectID { continue }
        if w.LoggedAt == nil || w.LoggedAt.Before(start) || !w.LoggedAt.Before(end) { continue }
        m := decimal.NewFromInt(w.Seconds / 60)
        minutes = minutes.Add(m)
        cost = cost.Add(m.Div(decimal.NewFromInt(60)).Mul(f.rateFor(w.AuthorID)))
    }
    return cost, minutes, nil
}

func (f *fakeStore) SumOpenEstimateSeconds(_ context.Context, projectID int64) (int64, error) {
    var total int64
    for _, i := range f.issues {
        if i.ProjectID == projectID && i.EndDate == nil && i.EstimatedSeconds != nil { total += *i.EstimatedSeconds }
    }
    return total, nil
}

func (f *fakeStore) CountIssues(_ context.Context, projectID, issueTypeID, statusID int64) (int64, error) {
    var total int64
    for _, i := range f.issues {
        if i.ProjectID != projectID || i.IssueTypeID == nil || i.StatusID == nil { continue }
        if *i.IssueTypeID == issueTypeID && *i.StatusID == statusID { total++ }
    }
    return total, nil
}

func (f *fakeStore) DevEffortTotals(_ context.Context, start, end time.Time) ([]repo.DevEffortRow, error) {
    agg := map[string]*repo.DevEffortRow{}
    for _, w := range f.worklogs {
        if w.AuthorID == nil { continue }
        if w.LoggedAt == nil || w.LoggedAt.Before(start) || !w.LoggedAt.Before(end) { continue }
        issue := f.issueByID(w.IssueID)
        if issue == nil { continue }
        key := fmt.Sprintf("%d/%d", *w.AuthorID, issue.ProjectID)
        if agg[key] == nil { agg[key] = &repo.DevEffortRow{AuthorID: *w.AuthorID, ProjectID: issue.ProjectID} }
        agg[key].Seconds += w.Seconds
    }
    keys := make([]string, 0, len(agg))
    for k := range agg { keys = append(keys, k) }
    sort.Strings(keys)
    out := make([]repo.DevEffortRow, 0, len(keys))
    for _, k := range keys { out = append(out, *agg[k]) }
    return out, nil
}

func (f *fakeStore) CountIssuesCreatedBefore(_ context.Context, projectID int64, cutoff time.Time) (int64, error) {
    var total int64
    for _, i := range f.issues {
        if i.ProjectID == projectID && i.CreatedAt != nil && i.CreatedAt.Before(cutoff) { total++ }
    }
    return total, nil
}

func (f *fakeStore) CountIssuesDoneBefore(_ context.Context, projectID int64, cutoff time.Time) (int64, error) {
    var total int64
    for _, i := range f.issues {
        if i.ProjectID == projectID && i.EndDate != nil && i.EndDate.Before(cutoff) { total++ }
    }
    return total, nil
}

func (f *fakeStore) TotalWorklogSeconds(_ context.Context, projectID int64) (int64, error) {
    var total int64
    for _, w := range f.worklogs {
        if issue := f.issueByID(w.IssueID); issue != nil && issue.ProjectID == projectID { total += w.Seconds }
    }
    return total, nil
}

func (f *fakeStore) IssueCountsByType(_ context.Context, projectID int64) ([]repo.TypeCountRow, error) {
    byType := map[string]int64{}
    for _, i := range f.issues {
        if i.ProjectID != projectID { continue }
        name := ""
        if i.IssueTypeID != nil {
            for _, t := range f.issueTypes {
                if t.ID == *i.IssueTypeID { name = t.Name }
            }
        }
        byType[name]++
    }
    var out []repo.TypeCountRow
    for name, total := range byType { out = append(out, repo.TypeCountRow{Name: name, Total: total}) }
    sort.Slice(out, func(a, b int) bool { return out[a].Total > out[b].Total })
    return out, nil
}

func (f *fakeStore) DevHoursByProject(_ context.Context, projectID int64) ([]repo.DevHoursRow, error) {
    byUser := map[int64]int64{}
    for _, w := range f.worklogs {
        if w.AuthorID == nil { continue }
        if issue := f.issueByID(w.IssueID); issue != nil && issue.ProjectID == projectID { byUser[*w.AuthorID] += w.Seconds }
    }
    var out []repo.DevHoursRow
    for uid, sec := range byUser {
        name := ""
        for _, u := range f.users {
            if u.ID == uid { name = u.DisplayName }
        }
        out = append(out, repo.DevHoursRow{UserID: uid, DisplayName: name, Seconds: sec})
    }
    sort.Slice(out, func(a, b int) bool { return out[a].Seconds > out[b].Seconds })
    return out, nil
}

func (f *fakeStore) CountPendingIssues(_ context.Context, projectID int64) (int64, error) {
    pending := map[string]bool{"new": true, "open": true, "pending": true, "todo": true, "backlog": true}
    var total int64
    for _, i := range f.issues {
        if i.ProjectID != projectID || i.StatusID == nil { continue }
        for _, st := range f.statusTypes {
            if st.ID == *i.StatusID && pending[st.CategoryKey] { total++ }
        }
    }
    return total, nil
}

func (f *fakeStore) StartSyncRun(context.Context) (int64, error) {
    id := f.id()
    f.runs = append(f.runs, domain.SyncRun{ID: id, StartedAt: time.Now()})
    return id, nil
}

func (f *fakeStore) FinishSyncRun(_ context.Context, id int64, projects, issues int, success bool, errStr string) error {
    for k := range f.runs {
        if f.runs[k].ID == id {
            now := time.Now()
            f.runs[k].FinishedAt = &now
            f.runs[k].ProjectsSynced, f.runs[k].IssuesSynced = projects, issues
            f.runs[k].Success, f.runs[k].Error = success, errStr
        }
    }
    return nil
}

func (f *fakeStore) GetLastSyncRun(context.Context) (*domain.SyncRun, error) {
    if len(f.runs) == 0 { return nil, nil }
    sr := f.runs[len(f.runs)-1]
    return &sr, nil
}

// fakeTracker serves canned payloads and records which calls were made.
type fakeTracker struct {
    projects   []map[string]any
    issueTypes []map[string]any
    statuses   []map[string]any
    issues     map[string][]map[string]any // by project key
    users      map[string]map[string]any   // by account id
    pageSize   int
    failSearch map[string]bool // project keys whose search errors

    searchCalls int
    userCalls   int
}

func (t *fakeTracker) ListProjects(context.Context) ([]map[string]any, error)   { return t.projects, nil }
func (t *fakeTracker) ListIssueTypes(context.Context) ([]map[string]any, error) { return t.issueTypes, nil }
func (t *fakeTracker) ListStatuses(context.Context) ([]map[string]any, error)   { return t.statuses, nil }

func (t *fakeTracker) SearchIssues(_ context.Context, projectKey string, startAt, max int) ([]map[string]any, int, error) {
    t.searchCalls++
    if t.failSearch[projectKey] { return nil, 0, fmt.Errorf("search failed for %s", projectKey) }
    all := t.issues[projectKey]
    if t.pageSize > 0 && t.pageSize < max { max = t.pageSize }
    if startAt >= len(all) { return nil, len(all), nil }
    end := startAt + max
    if end > len(all) { end = len(all) }
    return all[startAt:end], len(all), nil
}

func (t *fakeTracker) FetchUser(_ context.Context, accountID string) (map[string]any, error) {
    t.userCalls++
    if u, ok := t.users[accountID]; ok { return u, nil }
    return nil, fmt.Errorf("user %s not found", accountID)
}

func (t *fakeTracker) CountProjects(context.Context) (int, error) { return len(t.projects), nil }
