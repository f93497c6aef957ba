// Package parser recognises the two Markdown conventions daily notes rely on:
// checkbox task lines and the named sections that group them.
package parser

import (
	"regexp"
	"strings"
)

// Section identifies a recognised "## " heading in a daily note.
type Section int

const (
	SectionNone Section = iota
	SectionTodo
	SectionDone
	SectionNotes
)

// Recognised section titles.
const (
	TodoTitle  = "待办事项"
	DoneTitle  = "完成事项"
	NotesTitle = "笔记"
)

var (
	sectionRe  = regexp.MustCompile(`^##\s*(\S.*?)\s*$`)
	checkboxRe = regexp.MustCompile(`^-\s\[([ xX])\](.*)$`)
	markRe     = regexp.MustCompile(`-\s*\[([xX]|\s)\]`)
)

// SectionOf reports which recognised section a heading line opens.
// Unrecognised headings and non-heading lines return ok == false.
func SectionOf(line string) (Section, bool) {
	m := sectionRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
	if m == nil {
		return SectionNone, false
	}
	switch m[1] {
	case TodoTitle:
		return SectionTodo, true
	case DoneTitle:
		return SectionDone, true
	case NotesTitle:
		return SectionNotes, true
	}
	return SectionNone, false
}

// Checkbox is a parsed "- [ ] text" or "- [x] text" line.
type Checkbox struct {
	Checked bool
	Text    string
	Indent  int
}

// ParseCheckbox parses line as a checkbox item. Leading whitespace is allowed
// and reported in Indent.
func ParseCheckbox(line string) (Checkbox, bool) {
	line = strings.TrimRight(line, "\r")
	trimmed := strings.TrimLeft(line, " \t")
	m := checkboxRe.FindStringSubmatch(strings.TrimRight(trimmed, " \t"))
	if m == nil {
		return Checkbox{}, false
	}
	return Checkbox{
		Checked: m[1] != " ",
		Text:    strings.TrimSpace(m[2]),
		Indent:  len(line) - len(trimmed),
	}, true
}

// CheckMark reports whether line carries a checkbox mark anywhere, such as
// "- [x]", "-[ ]" or "text - [x]done", and whether the first one is checked.
func CheckMark(line string) (checked, ok bool) {
	m := markRe.FindStringSubmatch(line)
	if m == nil {
		return false, false
	}
	return m[1] == "x" || m[1] == "X", true
}

// IsIndented reports whether line starts with a space or tab. Indented lines
// belong to the closest preceding top-level task.
func IsIndented(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}

// Lines splits content into lines without their terminators.
func Lines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// Task is a top-level checkbox line together with its section.
type Task struct {
	Line    int
	Text    string
	Checked bool
	Section Section
}

// TopLevelTasks returns every non-indented checkbox line in content in file
// order, tagged with the recognised section it appears under.
func TopLevelTasks(content string) []Task {
	var (
		out     []Task
		section = SectionNone
	)
	for i, line := range Lines(content) {
		if s, ok := SectionOf(line); ok {
			section = s
			continue
		}
		if IsIndented(line) {
			continue
		}
		cb, ok := ParseCheckbox(line)
		if !ok {
			continue
		}
		out = append(out, Task{Line: i, Text: cb.Text, Checked: cb.Checked, Section: section})
	}
	return out
}
