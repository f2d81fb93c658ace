/* Copyright (c) 2025 Trackmart Authors
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"

    "github.com/shopspring/decimal"

    "github.com/example/trackmart/internal/domain"
)

var sixty = decimal.NewFromInt(60)

// BuildProjectSnapshots writes one snapshot per project for the interval:
// accumulated worklog cost and minutes inside the window, plus the projected
// remaining workdays from open-issue estimates.
func (s *Service) BuildProjectSnapshots(ctx context.Context, d *Dimensions, ti domain.TimeInterval) error {
    facts := make([]domain.ProjectSnapshot, 0, len(d.Projects))
    for projectID, dp := range d.Projects {
        cost, minutes, err := s.store.WorklogTotals(ctx, projectID, ti.Start, ti.End)
        if err != nil { return err }
        estSeconds, err := s.store.SumOpenEstimateSeconds(ctx, projectID)
        if err != nil { return err }
        facts = append(facts, domain.ProjectSnapshot{
            DimProjectID:       dp.ID,
            IntervalID:         ti.ID,
            AccumulatedCost:    cost,
            AccumulatedMinutes: minutes,
            ProjectedDays:      float64(estSeconds) / SecondsPerWorkday,
        })
    }
    if err := s.store.InsertProjectSnapshots(ctx, facts); err != nil { return err }
    s.log.Info().Int("rows", len(facts)).Int64("interval", ti.ID).Msg("project snapshots built")
    return nil
}

// BuildIssueCounts writes the full project x type x status cross-product for
// the interval. Zero totals are written too, so downstream queries never have
// to distinguish a missing row from an empty bucket.
func (s *Service) BuildIssueCounts(ctx context.Context, d *Dimensions, ti domain.TimeInterval) error {
    var facts []domain.IssueCount
    for projectID, dp := range d.Projects {
        for typeID, dt := range d.Types {
            for statusID, ds := range d.Statuses {
                total, err := s.store.CountIssues(ctx, projectID, typeID, statusID)
                if err != nil { return err }
                facts = append(facts, domain.IssueCount{
                    DimProjectID:   dp.ID,
                    DimIssueTypeID: dt.ID,
                    DimStatusID:    ds.ID,
                    IntervalID:     ti.ID,
                    Total:          total,
                })
            }
        }
    }
    if err := s.store.InsertIssueCounts(ctx, facts); err != nil { return err }
    s.log.Info().Int("rows", len(facts)).Int64("interval", ti.ID).Msg("issue counts built")
    return nil
}

type devProject struct{ userID, projectID int64 }

// BuildEffort writes one row per developer/project pair for the interval,
// zero-effort pairs included. Minutes are floored from seconds; cost is
// minutes converted to hours times the developer's hourly rate.
func (s *Service) BuildEffort(ctx context.Context, d *Dimensions, ti domain.TimeInterval) error {
    groups, err := s.store.DevEffortTotals(ctx, ti.Start, ti.End)
    if err != nil { return err }
    seconds := make(map[devProject]int64, len(groups))
    for _, g := range groups { seconds[devProject{g.AuthorID, g.ProjectID}] = g.Seconds }

    facts := make([]domain.Effort, 0, len(d.Developers)*len(d.Projects))
    for userID, dev := range d.Developers {
        for projectID, dp := range d.Projects {
            minutes := seconds[devProject{userID, projectID}] / 60
            cost := decimal.Zero
            if dev.HourlyRate.Valid && minutes > 0 {
                cost = decimal.NewFromInt(minutes).Div(sixty).Mul(dev.HourlyRate.Decimal)
            }
            facts = append(facts, domain.Effort{
                DimDeveloperID:     dev.ID,
                DimProjectID:       dp.ID,
                IntervalID:         ti.ID,
                AccumulatedMinutes: minutes,
                AccumulatedCost:    cost,
            })
        }
    }
    if err := s.store.InsertEfforts(ctx, facts); err != nil { return err }
    s.log.Info().Int("rows", len(facts)).Int64("interval", ti.ID).Msg("effort built")
    return nil
}
