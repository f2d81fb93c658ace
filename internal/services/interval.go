/* Copyright (c) 2025 Trackmart Authors
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "time"

    "github.com/example/trackmart/internal/domain"
)

// Bounds is a half-open window [Start, End).
type Bounds struct {
    Start time.Time
    End   time.Time
}

// ComputeBounds places the reference instant into its reporting bucket.
// Weeks start on Monday; quarters on Jan/Apr/Jul/Oct; semesters on Jan/Jul.
func ComputeBounds(g domain.Granularity, ref time.Time) (Bounds, error) {
    loc := ref.Location()
    day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)
    switch g {
    case domain.GranularityDay:
        return Bounds{Start: day, End: day.AddDate(0, 0, 1)}, nil
    case domain.GranularityWeek:
        // Weekday is Sunday-based; shift so Monday is offset 0.
        offset := (int(day.Weekday()) + 6) % 7
        start := day.AddDate(0, 0, -offset)
        return Bounds{Start: start, End: start.AddDate(0, 0, 7)}, nil
    case domain.GranularityMonth:
        start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
        return Bounds{Start: start, End: start.AddDate(0, 1, 0)}, nil
    case domain.GranularityQuarter:
        q := (int(ref.Month()) - 1) / 3
        start := time.Date(ref.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, loc)
        return Bounds{Start: start, End: start.AddDate(0, 3, 0)}, nil
    case domain.GranularitySemester:
        m := time.January
        if ref.Month() >= time.July { m = time.July }
        start := time.Date(ref.Year(), m, 1, 0, 0, 0, 0, loc)
        return Bounds{Start: start, End: start.AddDate(0, 6, 0)}, nil
    case domain.GranularityYear:
        start := time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, loc)
        return Bounds{Start: start, End: start.AddDate(1, 0, 0)}, nil
    }
    return Bounds{}, fmt.Errorf("unknown granularity %q", g)
}

// ParseGranularity validates the string form used on the wire.
func ParseGranularity(s string) (domain.Granularity, error) {
    switch domain.Granularity(s) {
    case domain.GranularityDay, domain.GranularityWeek, domain.GranularityMonth,
        domain.GranularityQuarter, domain.GranularitySemester, domain.GranularityYear:
        return domain.Granularity(s), nil
    }
    return "", fmt.Errorf("unknown granularity %q", s)
}

// MonthlyBuckets returns month windows keyed "YYYY-MM" for the monthsBack
// months ending with the reference month, oldest first in key order.
func MonthlyBuckets(monthsBack int, ref time.Time) map[string]Bounds {
    out := make(map[string]Bounds, monthsBack)
    loc := ref.Location()
    first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
    for i := monthsBack - 1; i >= 0; i-- {
        start := first.AddDate(0, -i, 0)
        out[start.Format("2006-01")] = Bounds{Start: start, End: start.AddDate(0, 1, 0)}
    }
    return out
}

// EnsureInterval creates the bucket that contains ref. It fails with
// ErrIntervalExists when an identical bucket is already loaded, which keeps
// each reporting window populated at most once.
func (s *Service) EnsureInterval(ctx context.Context, g domain.Granularity, ref time.Time) (domain.TimeInterval, error) {
    b, err := ComputeBounds(g, ref)
    if err != nil { return domain.TimeInterval{}, err }
    ti, created, err := s.store.CreateTimeInterval(ctx, domain.TimeInterval{Granularity: g, Start: b.Start, End: b.End})
    if err != nil { return domain.TimeInterval{}, err }
    if !created { return ti, ErrIntervalExists }
    return ti, nil
}
