package main

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/starford/daylog/internal/notes"
)

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDay accepts YYYY-MM-DD or a natural-language expression such as
// "yesterday" or "last friday", resolved against now.
func parseDay(s string, now time.Time) (notes.Date, error) {
	if s == "" || s == "today" {
		return notes.DateOf(now), nil
	}
	if d, err := notes.ParseDate(s); err == nil {
		return d, nil
	}
	r, err := dateParser.Parse(s, now)
	if err != nil {
		return notes.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	if r == nil {
		return notes.Date{}, fmt.Errorf("unrecognised date %q", s)
	}
	return notes.DateOf(r.Time), nil
}
