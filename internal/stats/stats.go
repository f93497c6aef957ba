// Package stats derives task statistics from daily notes: per-day checkbox
// counts and a summary of totals, completion rate and streaks.
package stats

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/starford/daylog/internal/apperr"
	"github.com/starford/daylog/internal/notes"
	"github.com/starford/daylog/internal/parser"
)

// DailyStats counts the checkbox items of one day.
type DailyStats struct {
	Total       int `json:"total"`
	Completed   int `json:"completed"`
	Uncompleted int `json:"uncompleted"`
}

// Perfect reports whether the day has tasks and all of them are done.
func (d DailyStats) Perfect() bool {
	return d.Total > 0 && d.Uncompleted == 0
}

// Summary is derived from the daily mapping and never edited directly.
type Summary struct {
	TotalTasksCreated   int     `json:"totalTasksCreated"`
	TotalTasksCompleted int     `json:"totalTasksCompleted"`
	CompletionRate      float64 `json:"completionRate"`
	CurrentStreak       int     `json:"currentStreak"`
	LongestStreak       int     `json:"longestStreak"`
	AverageTasksPerDay  float64 `json:"averageTasksPerDay"`
	TotalDays           int     `json:"totalDays"`
	DaysWithTasks       int     `json:"daysWithTasks"`
	PerfectDays         int     `json:"perfectDays"`
}

// Statistics is the persisted document. Daily is keyed by YYYY-MM-DD.
type Statistics struct {
	LastUpdated string                `json:"lastUpdated"`
	Daily       map[string]DailyStats `json:"daily"`
	Summary     Summary               `json:"summary"`
}

// Empty returns statistics with no tracked days.
func Empty() Statistics {
	return Statistics{Daily: map[string]DailyStats{}}
}

// ParseDay counts every line of content that carries a checkbox mark,
// wherever it sits in the line.
func ParseDay(content string) DailyStats {
	var d DailyStats
	for _, line := range parser.Lines(content) {
		checked, ok := parser.CheckMark(line)
		if !ok {
			continue
		}
		if checked {
			d.Completed++
		} else {
			d.Uncompleted++
		}
	}
	d.Total = d.Completed + d.Uncompleted
	return d
}

// Summarize folds daily into a summary as of today.
func Summarize(daily map[string]DailyStats, today notes.Date) Summary {
	var s Summary
	s.TotalDays = len(daily)
	for _, d := range daily {
		s.TotalTasksCreated += d.Total
		s.TotalTasksCompleted += d.Completed
		if d.Total > 0 {
			s.DaysWithTasks++
		}
		if d.Perfect() {
			s.PerfectDays++
		}
	}
	if s.TotalTasksCreated > 0 {
		s.CompletionRate = float64(s.TotalTasksCompleted) / float64(s.TotalTasksCreated)
	}
	if s.DaysWithTasks > 0 {
		s.AverageTasksPerDay = float64(s.TotalTasksCreated) / float64(s.DaysWithTasks)
	}
	s.CurrentStreak = currentStreak(daily, today)
	s.LongestStreak = longestStreak(daily)
	return s
}

// currentStreak walks backward from today counting perfect days. A day with
// tasks that is not perfect ends the walk. A day without an entry is skipped,
// but a second untracked day in a row ends it.
func currentStreak(daily map[string]DailyStats, today notes.Date) int {
	streak := 0
	skipped := false
	for d := today; ; d = d.AddDays(-1) {
		ds, ok := daily[d.String()]
		if !ok || ds.Total == 0 {
			if skipped {
				return streak
			}
			skipped = true
			continue
		}
		skipped = false
		if !ds.Perfect() {
			return streak
		}
		streak++
	}
}

// longestStreak runs forward over the tracked dates. Days without tasks
// leave the running count untouched.
func longestStreak(daily map[string]DailyStats) int {
	keys := slices.Sorted(maps.Keys(daily))
	run, best := 0, 0
	for _, k := range keys {
		d := daily[k]
		switch {
		case d.Perfect():
			run++
			best = max(best, run)
		case d.Total > 0:
			run = 0
		}
	}
	return best
}

// UpdateDay records the counts of one day and rederives the summary. A day
// with no tasks is removed rather than stored as zero. s is not modified.
func UpdateDay(s Statistics, date notes.Date, total, completed, uncompleted int, today notes.Date) (Statistics, error) {
	if date.After(today) {
		return s, fmt.Errorf("stats: update %s: %w", date, apperr.ErrFutureDate)
	}
	if total < 0 || completed < 0 || uncompleted < 0 || total != completed+uncompleted {
		return s, fmt.Errorf("stats: update %s: counts %d != %d + %d: %w",
			date, total, completed, uncompleted, apperr.ErrMalformedInput)
	}

	daily := maps.Clone(s.Daily)
	if daily == nil {
		daily = map[string]DailyStats{}
	}
	if total == 0 {
		delete(daily, date.String())
	} else {
		daily[date.String()] = DailyStats{Total: total, Completed: completed, Uncompleted: uncompleted}
	}
	return build(daily, today), nil
}

// Resummarize rederives the summary of s as of today.
func Resummarize(s Statistics, today notes.Date) Statistics {
	return build(maps.Clone(s.Daily), today)
}

func build(daily map[string]DailyStats, today notes.Date) Statistics {
	if daily == nil {
		daily = map[string]DailyStats{}
	}
	return Statistics{
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Daily:       daily,
		Summary:     Summarize(daily, today),
	}
}
