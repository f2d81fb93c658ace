/* Copyright (c) 2025 Trackmart Authors
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "errors"
    "sort"
    "time"
)

// ErrProjectNotFound reports an overview request for an unknown project.
var ErrProjectNotFound = errors.New("project not found")

type MonthStat struct {
    Month   string `json:"month"`
    Created int64  `json:"created"`
    Done    int64  `json:"done"`
}

type BurndownPoint struct {
    Month     string  `json:"month"`
    Remaining float64 `json:"remaining"`
}

type TypeCount struct {
    Type  string `json:"type"`
    Total int64  `json:"total"`
}

type DevHours struct {
    UserID      int64   `json:"user_id"`
    DisplayName string  `json:"display_name"`
    Hours       float64 `json:"hours"`
}

type Overview struct {
    ProjectID    int64           `json:"project_id"`
    Name         string          `json:"name"`
    MonthlyStats []MonthStat     `json:"monthly_stats"`
    Burndown     []BurndownPoint `json:"burndown"`
    TotalHours   float64         `json:"total_hours"`
    IssuesByType []TypeCount     `json:"issues_by_type"`
    DevHours     []DevHours      `json:"dev_hours"`
}

const overviewMonthsBack = 6

// ProjectOverview reports a project's recent activity: per-month created and
// finished counts, a linear burndown of the still-pending issues toward the
// project end date, total logged hours, and type and developer breakdowns.
func (s *Service) ProjectOverview(ctx context.Context, projectID int64) (*Overview, error) {
    return s.projectOverview(ctx, projectID, time.Now())
}

func (s *Service) projectOverview(ctx context.Context, projectID int64, now time.Time) (*Overview, error) {
    p, err := s.store.GetProjectByID(ctx, projectID)
    if err != nil { return nil, err }
    if p == nil { return nil, ErrProjectNotFound }

    o := &Overview{ProjectID: p.ID, Name: p.Name}

    buckets := MonthlyBuckets(overviewMonthsBack, now)
    months := make([]string, 0, len(buckets))
    for m := range buckets { months = append(months, m) }
    sort.Strings(months)
    for _, m := range months {
        b := buckets[m]
        created, err := monthDelta(ctx, s.store.CountIssuesCreatedBefore, projectID, b)
        if err != nil { return nil, err }
        done, err := monthDelta(ctx, s.store.CountIssuesDoneBefore, projectID, b)
        if err != nil { return nil, err }
        o.MonthlyStats = append(o.MonthlyStats, MonthStat{Month: m, Created: created, Done: done})
    }

    pending, err := s.store.CountPendingIssues(ctx, projectID)
    if err != nil { return nil, err }
    o.Burndown = burndown(pending, now, p.EndDate)

    totalSeconds, err := s.store.TotalWorklogSeconds(ctx, projectID)
    if err != nil { return nil, err }
    o.TotalHours = float64(totalSeconds) / 3600

    types, err := s.store.IssueCountsByType(ctx, projectID)
    if err != nil { return nil, err }
    for _, t := range types { o.IssuesByType = append(o.IssuesByType, TypeCount{Type: t.Name, Total: t.Total}) }

    devs, err := s.store.DevHoursByProject(ctx, projectID)
    if err != nil { return nil, err }
    for _, d := range devs {
        o.DevHours = append(o.DevHours, DevHours{UserID: d.UserID, DisplayName: d.DisplayName, Hours: float64(d.Seconds) / 3600})
    }
    return o, nil
}

type countBefore func(ctx context.Context, projectID int64, cutoff time.Time) (int64, error)

func monthDelta(ctx context.Context, f countBefore, projectID int64, b Bounds) (int64, error) {
    before, err := f(ctx, projectID, b.Start)
    if err != nil { return 0, err }
    after, err := f(ctx, projectID, b.End)
    if err != nil { return 0, err }
    return after - before, nil
}

// burndown spreads the pending count linearly over the months left until the
// project end. Without an end date, or one already past, the chart is the
// single current point.
func burndown(pending int64, now time.Time, end *time.Time) []BurndownPoint {
    cur := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
    if end == nil || !end.After(now) {
        return []BurndownPoint{{Month: cur.Format("2006-01"), Remaining: float64(pending)}}
    }
    last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
    monthsLeft := (last.Year()-cur.Year())*12 + int(last.Month()) - int(cur.Month())
    if monthsLeft < 1 {
        return []BurndownPoint{{Month: cur.Format("2006-01"), Remaining: float64(pending)}}
    }
    out := make([]BurndownPoint, 0, monthsLeft+1)
    for i := 0; i <= monthsLeft; i++ {
        remaining := float64(pending) * float64(monthsLeft-i) / float64(monthsLeft)
        out = append(out, BurndownPoint{Month: cur.AddDate(0, i, 0).Format("2006-01"), Remaining: remaining})
    }
    return out
}
