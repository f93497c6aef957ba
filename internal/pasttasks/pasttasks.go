// Package pasttasks finds unchecked to-do items left behind in earlier days
// and removes them from their source notes on request.
package pasttasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/starford/daylog/internal/apperr"
	"github.com/starford/daylog/internal/checksum"
	"github.com/starford/daylog/internal/notes"
	"github.com/starford/daylog/internal/parser"
	"github.com/starford/daylog/internal/storage"
)

var (
	// ErrMalformedDate is returned when a source date is not YYYY-MM-DD.
	ErrMalformedDate = fmt.Errorf("malformed source date: %w", apperr.ErrMalformedInput)
	// ErrSourceMissing is returned when the source note does not exist.
	ErrSourceMissing = fmt.Errorf("source note missing: %w", apperr.ErrNotFound)
)

// Task is an unchecked to-do item of an earlier day.
type Task struct {
	SourceDate string `json:"sourceDate"`
	Text       string `json:"text"`
	ID         string `json:"id"`
}

// TaskID derives the stable id of a task from its day and text.
func TaskID(sourceDate, text string) string {
	return checksum.Short(sourceDate + ":" + text)
}

// Scan returns the open top-level to-do items of every day strictly before
// today, most recent day first. Items whose id is in dismissed are left out.
func Scan(ctx context.Context, files storage.Provider, dismissed []string, today notes.Date) ([]Task, error) {
	skip := make(map[string]bool, len(dismissed))
	for _, id := range dismissed {
		skip[id] = true
	}

	var days [][]Task
	for e := range notes.Days(files.Root()) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Date.Before(today) {
			continue
		}
		data, err := files.Read(e.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("pasttasks: read %s: %w", e.Path, err)
		}
		src := e.Date.String()
		var found []Task
		for _, t := range parser.TopLevelTasks(string(data)) {
			if t.Checked || t.Section != parser.SectionTodo || t.Text == "" {
				continue
			}
			id := TaskID(src, t.Text)
			if skip[id] {
				continue
			}
			found = append(found, Task{SourceDate: src, Text: t.Text, ID: id})
		}
		if len(found) > 0 {
			days = append(days, found)
		}
	}

	slices.Reverse(days)
	out := []Task{}
	for _, d := range days {
		out = append(out, d...)
	}
	return out, nil
}

// DeleteTask removes every open top-level to-do line of sourceDate whose text
// is text, together with its indented children and the blank lines between
// removed blocks. It returns the rewritten note path for the caller to commit.
func DeleteTask(files storage.Provider, sourceDate, text string) (string, error) {
	d, err := notes.ParseDate(sourceDate)
	if err != nil {
		return "", fmt.Errorf("pasttasks: %q: %w", sourceDate, ErrMalformedDate)
	}
	rel := notes.PathFor(d)
	if !files.Exists(rel) && files.Exists(notes.LegacyPathFor(d)) {
		rel = notes.LegacyPathFor(d)
	}
	data, err := files.Read(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("pasttasks: %s: %w", rel, ErrSourceMissing)
		}
		return "", fmt.Errorf("pasttasks: read %s: %w", rel, err)
	}

	content := string(data)
	out, ok := removeTask(content, text)
	if !ok {
		return "", fmt.Errorf("pasttasks: task %q in %s: %w", text, rel, apperr.ErrNotFound)
	}
	if err := files.Write(rel, []byte(out)); err != nil {
		return "", fmt.Errorf("pasttasks: write %s: %w", rel, err)
	}
	return rel, nil
}

func removeTask(content, text string) (string, bool) {
	lines := parser.Lines(content)
	removed := make([]bool, len(lines))
	hit := false

	for _, t := range parser.TopLevelTasks(content) {
		if t.Checked || t.Section != parser.SectionTodo || t.Text != text {
			continue
		}
		hit = true
		removed[t.Line] = true
		for j := t.Line + 1; j < len(lines) && parser.IsIndented(lines[j]) && strings.TrimSpace(lines[j]) != ""; j++ {
			removed[j] = true
		}
	}
	if !hit {
		return content, false
	}

	// Blank runs bounded by removed lines on both sides go too.
	for i := 0; i < len(lines); {
		if strings.TrimSpace(lines[i]) != "" {
			i++
			continue
		}
		j := i
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}
		if i > 0 && removed[i-1] && j < len(lines) && removed[j] {
			for k := i; k < j; k++ {
				removed[k] = true
			}
		}
		i = j
	}

	kept := make([]string, 0, len(lines))
	for i, l := range lines {
		if !removed[i] {
			kept = append(kept, l)
		}
	}
	out := strings.Join(kept, "\n")
	if strings.HasSuffix(content, "\n") && len(kept) > 0 {
		out += "\n"
	}
	return out, true
}
