// Package attendance aggregates backend attendance records for display:
// monthly statistics, the weekly presence series, and derived achievements.
// Records are read-only input; nothing here performs I/O.
package attendance

import (
	"math"
	"time"

	"github.com/spotin-app/spotin-go/api"
)

const dateKeyLayout = "2006-01-02"

// MonthlyStats summarises one batch of records for the dashboard.
type MonthlyStats struct {
	TotalDays             int
	PresentDays           int
	LateDays              int
	AbsentDays            int
	AttendancePercentage  int
	PunctualityPercentage int
}

// Monthly computes dashboard statistics over records. Rejected records count
// as absences; punctuality is measured over attended days only.
func Monthly(records []api.AttendanceRecord) MonthlyStats {
	stats := MonthlyStats{TotalDays: len(records)}
	if stats.TotalDays == 0 {
		return stats
	}

	for _, r := range records {
		switch {
		case r.Status == api.StatusRejected:
			stats.AbsentDays++
		case r.Result == api.ResultOnTime:
			stats.PresentDays++
		case r.Result == api.ResultLate:
			stats.LateDays++
		}
	}

	attended := stats.PresentDays + stats.LateDays
	stats.AttendancePercentage = roundPercent(attended, stats.TotalDays)
	if attended > 0 {
		stats.PunctualityPercentage = roundPercent(stats.PresentDays, attended)
	}
	return stats
}

// WeeklyBar is one day in the last-seven-days presence series.
type WeeklyBar struct {
	DateKey  string
	Label    string
	Attended bool
}

// WeeklySeries returns one bar per day for the seven days ending at now,
// oldest first. A day counts as attended when a non-rejected record exists
// for its dateKey.
func WeeklySeries(records []api.AttendanceRecord, now time.Time) []WeeklyBar {
	attended := make(map[string]bool, len(records))
	for _, r := range records {
		if r.Status != api.StatusRejected {
			attended[r.DateKey] = true
		}
	}

	labels := [7]string{"S", "M", "T", "W", "T", "F", "S"}
	series := make([]WeeklyBar, 0, 7)
	for i := 6; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		key := day.Format(dateKeyLayout)
		series = append(series, WeeklyBar{
			DateKey:  key,
			Label:    labels[day.Weekday()],
			Attended: attended[key],
		})
	}
	return series
}

// GroupByDate indexes records by their dateKey. With at most one mark per day
// the last record seen for a key wins.
func GroupByDate(records []api.AttendanceRecord) map[string]api.AttendanceRecord {
	grouped := make(map[string]api.AttendanceRecord, len(records))
	for _, r := range records {
		grouped[r.DateKey] = r
	}
	return grouped
}

// Achievement is a derived badge shown on the dashboard.
type Achievement struct {
	ID       string
	Title    string
	Subtitle string
}

// Achievements derives badges from the history. Records are expected newest
// first, as the backend returns them.
func Achievements(records []api.AttendanceRecord) []Achievement {
	var achievements []Achievement

	recent := records
	if len(recent) > 7 {
		recent = recent[:7]
	}
	perfect := 0
	for _, r := range recent {
		if r.Result == api.ResultOnTime && r.Status != api.StatusRejected {
			perfect++
		}
	}
	if perfect >= 5 {
		achievements = append(achievements, Achievement{
			ID:       "perfect_week",
			Title:    "Perfect week",
			Subtitle: "5 on-time marks in the last 7 days",
		})
	}

	onTimeTotal := 0
	for _, r := range records {
		if r.Result == api.ResultOnTime {
			onTimeTotal++
		}
	}
	if onTimeTotal >= 10 {
		achievements = append(achievements, Achievement{
			ID:       "punctual_king",
			Title:    "Punctuality champion",
			Subtitle: "More than 10 on-time marks",
		})
	}

	if len(records) >= 20 {
		achievements = append(achievements, Achievement{
			ID:       "committed",
			Title:    "Full commitment",
			Subtitle: "20 attendance marks recorded",
		})
	}

	return achievements
}

// StatusText returns the display label for a record's result and status.
func StatusText(result api.Result, status api.Status) string {
	switch {
	case status == api.StatusRejected:
		return "Absent"
	case status == api.StatusPending:
		return "Pending"
	case result == api.ResultOnTime:
		return "Present"
	case result == api.ResultLate:
		return "Late"
	}
	return "Unknown"
}

func roundPercent(part, total int) int {
	return int(math.Round(float64(part) / float64(total) * 100))
}
