package domain

import (
    "time"

    "github.com/shopspring/decimal"
)

// Operational entities, written by the tracker sync and read by the
// dimension/fact layer. External (Jira) ids are the natural keys.

type Project struct {
    ID          int64
    JiraID      int64
    Key         string
    Name        string
    Description string
    StartDate   *time.Time
    EndDate     *time.Time
}

type Issue struct {
    ID               int64
    JiraID           int64
    ProjectID        int64
    IssueTypeID      *int64
    StatusID         *int64
    AssigneeID       *int64
    Summary          string
    Details          string
    CreatedAt        *time.Time
    StartDate        *time.Time
    EndDate          *time.Time
    EstimatedSeconds *int64
}

type Worklog struct {
    ID       int64
    JiraID   int64
    IssueID  int64
    AuthorID *int64
    Seconds  int64
    LoggedAt *time.Time
    Comment  string
}

type IssueType struct {
    ID          int64
    JiraID      int64
    Name        string
    Description string
    Subtask     bool
}

type StatusType struct {
    ID          int64
    JiraID      int64
    Name        string
    CategoryKey string
}

type User struct {
    ID          int64
    JiraID      string
    Username    string
    DisplayName string
    Email       string
    HourlyRate  decimal.NullDecimal
}

// Dimension rows. Upsert key is always the external id; local ids are
// carried as join convenience only.

type DimProject struct {
    ID        int64
    ProjectID int64
    JiraID    int64
    Name      string
    StartDate *time.Time
    EndDate   *time.Time
}

type DimDeveloper struct {
    ID          int64
    UserID      int64
    JiraID      string
    DisplayName string
    HourlyRate  decimal.NullDecimal
}

type DimStatus struct {
    ID       int64
    JiraID   int64
    StatusID int64
    Name     string
    Category string
}

type DimIssueType struct {
    ID          int64
    JiraID      int64
    IssueTypeID int64
    Name        string
}

type DimIssue struct {
    ID             int64
    IssueID        int64
    JiraID         int64
    DimProjectID   int64
    DimIssueTypeID int64
    CreatedAt      *time.Time
    StartDate      *time.Time
}

type Granularity string

const (
    GranularityDay      Granularity = "DAY"
    GranularityWeek     Granularity = "WEEK"
    GranularityMonth    Granularity = "MONTH"
    GranularityQuarter  Granularity = "QUARTER"
    GranularitySemester Granularity = "SEMESTER"
    GranularityYear     Granularity = "YEAR"
)

// TimeInterval is a half-open reporting bucket [Start, End).
type TimeInterval struct {
    ID          int64
    Granularity Granularity
    Start       time.Time
    End         time.Time
}

// Fact rows, append-only per interval.

type ProjectSnapshot struct {
    ID                 int64
    DimProjectID       int64
    IntervalID         int64
    AccumulatedCost    decimal.Decimal
    AccumulatedMinutes decimal.Decimal
    ProjectedDays      float64
}

// AverageHourlyValue is cost per worked hour for the snapshot window.
func (s ProjectSnapshot) AverageHourlyValue() decimal.Decimal {
    if s.AccumulatedMinutes.IsZero() { return decimal.Zero }
    hours := s.AccumulatedMinutes.Div(decimal.NewFromInt(60))
    return s.AccumulatedCost.Div(hours)
}

type IssueCount struct {
    ID             int64
    DimProjectID   int64
    DimIssueTypeID int64
    DimStatusID    int64
    IntervalID     int64
    Total          int64
}

type Effort struct {
    ID                 int64
    DimDeveloperID     int64
    DimProjectID       int64
    IntervalID         int64
    AccumulatedMinutes int64
    AccumulatedCost    decimal.Decimal
}

// SyncRun is the bookkeeping row for one orchestrator pass.
type SyncRun struct {
    ID             int64      `json:"id"`
    StartedAt      time.Time  `json:"started_at"`
    FinishedAt     *time.Time `json:"finished_at"`
    ProjectsSynced int        `json:"projects_synced"`
    IssuesSynced   int        `json:"issues_synced"`
    Success        bool       `json:"success"`
    Error          string     `json:"error"`
}
