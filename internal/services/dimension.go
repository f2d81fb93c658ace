/* Copyright (c) 2025 Trackmart Authors
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"

    "github.com/example/trackmart/internal/domain"
)

// Dimensions indexes the refreshed dimension rows by their operational ids
// so the fact builders can translate without further reads.
type Dimensions struct {
    Projects   map[int64]domain.DimProject   // by projects.id
    Developers map[int64]domain.DimDeveloper // by users.id
    Statuses   map[int64]domain.DimStatus    // by status_types.id
    Types      map[int64]domain.DimIssueType // by issue_types.id
    Issues     []domain.DimIssue
}

// SyncDimensions refreshes every dimension from the operational tables.
// Upserts key on the tracker id, so re-running against unchanged data is a
// no-op apart from updated attributes.
func (s *Service) SyncDimensions(ctx context.Context) (*Dimensions, error) {
    d := &Dimensions{
        Projects:   map[int64]domain.DimProject{},
        Developers: map[int64]domain.DimDeveloper{},
        Statuses:   map[int64]domain.DimStatus{},
        Types:      map[int64]domain.DimIssueType{},
    }

    projects, err := s.store.ListProjects(ctx)
    if err != nil { return nil, err }
    for _, p := range projects {
        row, err := s.store.UpsertDimProject(ctx, domain.DimProject{
            ProjectID: p.ID, JiraID: p.JiraID, Name: p.Name,
            StartDate: p.StartDate, EndDate: p.EndDate,
        })
        if err != nil { return nil, err }
        d.Projects[p.ID] = row
    }

    users, err := s.store.ListUsers(ctx)
    if err != nil { return nil, err }
    for _, u := range users {
        row, err := s.store.UpsertDimDeveloper(ctx, domain.DimDeveloper{
            UserID: u.ID, JiraID: u.JiraID, DisplayName: u.DisplayName, HourlyRate: u.HourlyRate,
        })
        if err != nil { return nil, err }
        d.Developers[u.ID] = row
    }

    statuses, err := s.store.ListStatusTypes(ctx)
    if err != nil { return nil, err }
    for _, st := range statuses {
        row, err := s.store.UpsertDimStatus(ctx, domain.DimStatus{
            JiraID: st.JiraID, StatusID: st.ID, Name: st.Name, Category: st.CategoryKey,
        })
        if err != nil { return nil, err }
        d.Statuses[st.ID] = row
    }

    types, err := s.store.ListIssueTypes(ctx)
    if err != nil { return nil, err }
    for _, t := range types {
        row, err := s.store.UpsertDimIssueType(ctx, domain.DimIssueType{
            JiraID: t.JiraID, IssueTypeID: t.ID, Name: t.Name,
        })
        if err != nil { return nil, err }
        d.Types[t.ID] = row
    }

    // Issue dimension is derived once over the full issue set, after the
    // dimensions it references are in place.
    issues, err := s.store.ListIssues(ctx)
    if err != nil { return nil, err }
    for _, i := range issues {
        dp, ok := d.Projects[i.ProjectID]
        if !ok {
            s.log.Warn().Int64("issue", i.JiraID).Msg("issue dim skipped: project not in dimension")
            continue
        }
        if i.IssueTypeID == nil {
            s.log.Warn().Int64("issue", i.JiraID).Msg("issue dim skipped: no issue type")
            continue
        }
        dt, ok := d.Types[*i.IssueTypeID]
        if !ok {
            s.log.Warn().Int64("issue", i.JiraID).Msg("issue dim skipped: type not in dimension")
            continue
        }
        row, err := s.store.UpsertDimIssue(ctx, domain.DimIssue{
            IssueID: i.ID, JiraID: i.JiraID,
            DimProjectID: dp.ID, DimIssueTypeID: dt.ID,
            CreatedAt: i.CreatedAt, StartDate: i.StartDate,
        })
        if err != nil { return nil, err }
        d.Issues = append(d.Issues, row)
    }

    s.log.Info().
        Int("projects", len(d.Projects)).
        Int("developers", len(d.Developers)).
        Int("statuses", len(d.Statuses)).
        Int("types", len(d.Types)).
        Int("issues", len(d.Issues)).
        Msg("dimensions refreshed")
    return d, nil
}
