/* Copyright (c) 2025 Trackmart Authors
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "strconv"
    "strings"
    "time"

    "github.com/example/trackmart/internal/adapters/jira"
    "github.com/example/trackmart/internal/domain"
)

// FullSync pulls projects, issue types, statuses, issues and worklogs from
// the tracker into the operational tables. Only one sync runs per process;
// a second request fails fast with ErrSyncInProgress.
func (s *Service) FullSync(ctx context.Context) error {
    if !s.syncMu.TryLock() { return ErrSyncInProgress }
    defer s.syncMu.Unlock()
    return s.runFullSync(ctx)
}

// StartFullSync begins a sync detached from the caller, so an HTTP request
// can queue it and return. The in-progress guard is taken before returning.
func (s *Service) StartFullSync() error {
    if !s.syncMu.TryLock() { return ErrSyncInProgress }
    go func() {
        defer s.syncMu.Unlock()
        ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SyncTimeout)
        defer cancel()
        _ = s.runFullSync(ctx)
    }()
    return nil
}

func (s *Service) runFullSync(ctx context.Context) error {
    runID, err := s.store.StartSyncRun(ctx)
    if err != nil { return err }
    projects, issues, err := s.fullSync(ctx)
    errStr := ""
    if err != nil {
        errStr = err.Error()
        s.log.Error().Err(err).Msg("full sync failed")
        if s.notify != nil { s.notify.Notify(ctx, "trackmart: full sync failed: "+err.Error()) }
    }
    if ferr := s.store.FinishSyncRun(ctx, runID, projects, issues, err == nil, errStr); ferr != nil {
        s.log.Error().Err(ferr).Msg("finish sync run failed")
    }
    return err
}

func (s *Service) fullSync(ctx context.Context) (projectCount, issueCount int, err error) {
    started := time.Now()

    // A project-list failure aborts everything: issues reference projects.
    s.log.Info().Str("stage", "fetch_projects").Msg("sync")
    raw, err := s.tracker.ListProjects(ctx)
    if err != nil { return 0, 0, err }

    s.log.Info().Str("stage", "fetch_types_and_statuses").Msg("sync")
    typeIDs, err := s.syncIssueTypes(ctx)
    if err != nil { return 0, 0, err }
    statusIDs, err := s.syncStatuses(ctx)
    if err != nil { return 0, 0, err }

    // One project's issue sync failing does not abort the others; the run is
    // reported failed at the end with the projects that did not complete.
    s.log.Info().Str("stage", "fetch_issues_per_project").Msg("sync")
    users := map[string]int64{}
    var failed []string
    for _, rp := range raw {
        jiraID, err := asInt64(rp["id"])
        if err != nil {
            s.log.Warn().Interface("id", rp["id"]).Msg("project skipped: bad id")
            continue
        }
        key := asString(rp["key"])
        if key == "" {
            s.log.Warn().Int64("jira_id", jiraID).Msg("project skipped: no key")
            continue
        }
        p := domain.Project{JiraID: jiraID, Key: key, Name: asString(rp["name"]), Description: asString(rp["description"])}
        p.ID, err = s.store.UpsertProject(ctx, p)
        if err != nil { return projectCount, issueCount, err }
        projectCount++

        n, err := s.syncProjectIssues(ctx, p, typeIDs, statusIDs, users)
        issueCount += n
        if err == nil { err = s.store.RecomputeProjectDates(ctx, p.ID) }
        if err != nil {
            s.log.Error().Err(err).Str("project", p.Key).Msg("project sync failed")
            failed = append(failed, p.Key)
        }
    }

    s.log.Info().Int("projects", projectCount).Int("issues", issueCount).
        Dur("took", time.Since(started)).Msg("full sync done")
    if len(failed) > 0 {
        return projectCount, issueCount, fmt.Errorf("sync incomplete for projects: %s", strings.Join(failed, ", "))
    }
    return projectCount, issueCount, nil
}

func (s *Service) syncIssueTypes(ctx context.Context) (map[int64]int64, error) {
    raw, err := s.tracker.ListIssueTypes(ctx)
    if err != nil { return nil, err }
    ids := map[int64]int64{}
    for _, rt := range raw {
        jiraID, err := asInt64(rt["id"])
        if err != nil {
            s.log.Warn().Interface("id", rt["id"]).Msg("issue type skipped: bad id")
            continue
        }
        t := domain.IssueType{JiraID: jiraID, Name: asString(rt["name"]), Description: asString(rt["description"]), Subtask: rt["subtask"] == true}
        id, err := s.store.UpsertIssueType(ctx, t)
        if err != nil { return nil, err }
        ids[jiraID] = id
    }
    return ids, nil
}

func (s *Service) syncStatuses(ctx context.Context) (map[int64]int64, error) {
    raw, err := s.tracker.ListStatuses(ctx)
    if err != nil { return nil, err }
    ids := map[int64]int64{}
    for _, rs := range raw {
        jiraID, err := asInt64(rs["id"])
        if err != nil {
            s.log.Warn().Interface("id", rs["id"]).Msg("status skipped: bad id")
            continue
        }
        st := domain.StatusType{JiraID: jiraID, Name: asString(rs["name"]), CategoryKey: "undefined"}
        if cat, ok := rs["statusCategory"].(map[string]any); ok {
            if k := asString(cat["key"]); k != "" { st.CategoryKey = k }
        }
        id, err := s.store.UpsertStatusType(ctx, st)
        if err != nil { return nil, err }
        ids[jiraID] = id
    }
    return ids, nil
}

// syncProjectIssues walks the search pages for one project, upserting issues
// and their worklogs. Malformed payload entries are skipped with a warning
// rather than failing the whole run.
func (s *Service) syncProjectIssues(ctx context.Context, p domain.Project, typeIDs, statusIDs map[int64]int64, users map[string]int64) (int, error) {
    count := 0
    startAt := 0
    for {
        page, total, err := s.tracker.SearchIssues(ctx, p.Key, startAt, s.cfg.JiraPageSize)
        if err != nil { return count, err }
        if len(page) == 0 { break }
        for _, ri := range page {
            stored, err := s.upsertRawIssue(ctx, p, ri, typeIDs, statusIDs, users)
            if err != nil { return count, err }
            if stored { count++ }
        }
        startAt += len(page)
        if startAt >= total { break }
    }
    s.log.Debug().Str("project", p.Key).Int("issues", count).Msg("project issues synced")
    return count, nil
}

func (s *Service) upsertRawIssue(ctx context.Context, p domain.Project, ri map[string]any, typeIDs, statusIDs map[int64]int64, users map[string]int64) (bool, error) {
    jiraID, err := asInt64(ri["id"])
    if err != nil {
        s.log.Warn().Interface("id", ri["id"]).Str("project", p.Key).Msg("issue skipped: bad id")
        return false, nil
    }
    fields, ok := ri["fields"].(map[string]any)
    if !ok {
        s.log.Warn().Int64("issue", jiraID).Msg("issue skipped: no fields")
        return false, nil
    }

    i := domain.Issue{
        JiraID:    jiraID,
        ProjectID: p.ID,
        Summary:   asString(fields["summary"]),
        Details:   jira.FirstTextFromADF(fields["description"]),
        CreatedAt: parseTime(asString(fields["created"])),
        StartDate: parseTime(asString(fields["customfield_10015"])),
        EndDate:   parseTime(asString(fields["resolutiondate"])),
    }
    if sec, err := asInt64(fields["timeestimate"]); err == nil { i.EstimatedSeconds = &sec }
    if it, ok := fields["issuetype"].(map[string]any); ok {
        if tid, err := asInt64(it["id"]); err == nil {
            if local, ok := typeIDs[tid]; ok { i.IssueTypeID = &local }
        }
    }
    if st, ok := fields["status"].(map[string]any); ok {
        if sid, err := asInt64(st["id"]); err == nil {
            if local, ok := statusIDs[sid]; ok { i.StatusID = &local }
        }
    }
    if as, ok := fields["assignee"].(map[string]any); ok {
        if uid, err := s.resolveUser(ctx, as, users); err == nil { i.AssigneeID = &uid }
    }

    i.ID, err = s.store.UpsertIssue(ctx, i)
    if err != nil { return false, err }

    if wl, ok := fields["worklog"].(map[string]any); ok {
        if entries, ok := wl["worklogs"].([]any); ok {
            for _, e := range entries {
                re, ok := e.(map[string]any)
                if !ok { continue }
                if err := s.upsertRawWorklog(ctx, i.ID, re, users); err != nil { return false, err }
            }
        }
    }
    return true, nil
}

func (s *Service) upsertRawWorklog(ctx context.Context, issueID int64, re map[string]any, users map[string]int64) error {
    jiraID, err := asInt64(re["id"])
    if err != nil {
        s.log.Warn().Interface("id", re["id"]).Msg("worklog skipped: bad id")
        return nil
    }
    w := domain.Worklog{
        JiraID:   jiraID,
        IssueID:  issueID,
        LoggedAt: parseTime(asString(re["started"])),
        Comment:  jira.FirstTextFromADF(re["comment"]),
    }
    if sec, err := asInt64(re["timeSpentSeconds"]); err == nil { w.Seconds = sec }
    if au, ok := re["author"].(map[string]any); ok {
        if uid, err := s.resolveUser(ctx, au, users); err == nil { w.AuthorID = &uid }
    }
    _, err = s.store.UpsertWorklog(ctx, w)
    return err
}

// resolveUser turns a payload-embedded account into a local user id, fetching
// the full profile at most once per account and run. Accounts already known
// locally never hit the tracker.
func (s *Service) resolveUser(ctx context.Context, raw map[string]any, cache map[string]int64) (int64, error) {
    accountID := asString(raw["accountId"])
    if accountID == "" { return 0, errMissingAccount }
    if id, ok := cache[accountID]; ok { return id, nil }

    username := usernameFor(raw)
    if u, err := s.store.GetUserByUsername(ctx, username); err != nil {
        return 0, err
    } else if u != nil {
        cache[accountID] = u.ID
        return u.ID, nil
    }

    profile := raw
    if full, err := s.tracker.FetchUser(ctx, accountID); err == nil {
        profile = full
    } else {
        s.log.Warn().Err(err).Str("account", accountID).Msg("user fetch failed, using embedded fields")
    }
    id, err := s.store.GetOrCreateUser(ctx, domain.User{
        JiraID:      accountID,
        Username:    usernameFor(profile),
        DisplayName: asString(profile["displayName"]),
        Email:       asString(profile["emailAddress"]),
    })
    if err != nil { return 0, err }
    cache[accountID] = id
    return id, nil
}

// usernameFor prefers the mail-local part; accounts hiding their email get a
// stable tracker-derived handle instead.
func usernameFor(raw map[string]any) string {
    if email := asString(raw["emailAddress"]); email != "" {
        if at := strings.IndexByte(email, '@'); at > 0 { return email[:at] }
        return email
    }
    return "jira_" + asString(raw["accountId"])
}

// RunDimensionalLoad creates the interval containing now, refreshes every
// dimension and builds the three fact tables. A bucket that was already
// loaded fails fast with ErrIntervalExists.
func (s *Service) RunDimensionalLoad(ctx context.Context, g domain.Granularity) error {
    if !s.syncMu.TryLock() { return ErrSyncInProgress }
    defer s.syncMu.Unlock()
    ti, err := s.EnsureInterval(ctx, g, time.Now())
    if err != nil { return err }
    return s.buildFacts(ctx, ti)
}

// StartDimensionalLoad creates the interval up front, so duplicate buckets
// are rejected before the caller is released, then builds facts detached.
func (s *Service) StartDimensionalLoad(ctx context.Context, g domain.Granularity) error {
    if !s.syncMu.TryLock() { return ErrSyncInProgress }
    ti, err := s.EnsureInterval(ctx, g, time.Now())
    if err != nil { s.syncMu.Unlock(); return err }
    go func() {
        defer s.syncMu.Unlock()
        bctx, cancel := context.WithTimeout(context.Background(), s.cfg.SyncTimeout)
        defer cancel()
        if err := s.buildFacts(bctx, ti); err != nil {
            s.log.Error().Err(err).Msg("dimensional load failed")
            if s.notify != nil { s.notify.Notify(bctx, "trackmart: dimensional load failed: "+err.Error()) }
        }
    }()
    return nil
}

func (s *Service) buildFacts(ctx context.Context, ti domain.TimeInterval) error {
    started := time.Now()
    s.log.Info().Str("stage", "build_dimensions").Msg("sync")
    dims, err := s.SyncDimensions(ctx)
    if err != nil { return err }
    s.log.Info().Str("stage", "build_facts").Msg("sync")
    if err := s.BuildProjectSnapshots(ctx, dims, ti); err != nil { return err }
    if err := s.BuildIssueCounts(ctx, dims, ti); err != nil { return err }
    if err := s.BuildEffort(ctx, dims, ti); err != nil { return err }
    s.log.Info().Str("granularity", string(ti.Granularity)).Int64("interval", ti.ID).
        Dur("took", time.Since(started)).Msg("dimensional load done")
    return nil
}

var errMissingAccount = errString("payload account has no id")

type errString string

func (e errString) Error() string { return string(e) }

var issueTimeLayouts = []string{
    "2006-01-02T15:04:05.000-0700",
    time.RFC3339,
    "2006-01-02",
}

func parseTime(s string) *time.Time {
    if s == "" { return nil }
    for _, layout := range issueTimeLayouts {
        if t, err := time.Parse(layout, s); err == nil {
            u := t.UTC()
            return &u
        }
    }
    return nil
}

func asString(v any) string {
    s, _ := v.(string)
    return s
}

// asInt64 accepts the two shapes tracker ids arrive in, JSON numbers and
// numeric strings.
func asInt64(v any) (int64, error) {
    switch x := v.(type) {
    case float64:
        return int64(x), nil
    case string:
        return strconv.ParseInt(x, 10, 64)
    case int64:
        return x, nil
    case int:
        return int64(x), nil
    }
    return 0, errString("not a number")
}
