package parser

import (
	"testing"
)

func TestSectionOf(t *testing.T) {
	cases := []struct {
		line string
		want Section
		ok   bool
	}{
		{"## 待办事项", SectionTodo, true},
		{"##待办事项", SectionTodo, true},
		{"## 完成事项  ", SectionDone, true},
		{"## 笔记", SectionNotes, true},
		{"## 附件", SectionNone, false},
		{"# 2024-01-01", SectionNone, false},
		{"- [ ] task", SectionNone, false},
	}
	for _, c := range cases {
		got, ok := SectionOf(c.line)
		if got != c.want || ok != c.ok {
			t.Errorf("SectionOf(%q) = %v, %v; want %v, %v", c.line, got, ok, c.want, c.ok)
		}
	}
}

func TestParseCheckbox(t *testing.T) {
	cases := []struct {
		line    string
		ok      bool
		checked bool
		text    string
		indent  int
	}{
		{"- [ ] buy milk", true, false, "buy milk", 0},
		{"- [x] done", true, true, "done", 0},
		{"- [X] shout", true, true, "shout", 0},
		{"  - [ ] 2%", true, false, "2%", 2},
		{"- [ ] ", true, false, "", 0},
		{"- [ ]", true, false, "", 0},
		{"- [x]done", true, true, "done", 0},
		{"- [] nope", false, false, "", 0},
		{"* [ ] star", false, false, "", 0},
		{"plain text", false, false, "", 0},
	}
	for _, c := range cases {
		cb, ok := ParseCheckbox(c.line)
		if ok != c.ok {
			t.Errorf("ParseCheckbox(%q) ok = %v, want %v", c.line, ok, c.ok)
			continue
		}
		if !ok {
			continue
		}
		if cb.Checked != c.checked || cb.Text != c.text || cb.Indent != c.indent {
			t.Errorf("ParseCheckbox(%q) = %+v", c.line, cb)
		}
	}
}

func TestCheckMark(t *testing.T) {
	cases := []struct {
		line    string
		checked bool
		ok      bool
	}{
		{"- [x] done", true, true},
		{"-[X]", true, true},
		{"  - [ ] child", false, true},
		{"see - [x]later", true, true},
		{"- [] empty", false, false},
		{"[x] bare", false, false},
	}
	for _, c := range cases {
		checked, ok := CheckMark(c.line)
		if checked != c.checked || ok != c.ok {
			t.Errorf("CheckMark(%q) = %v, %v", c.line, checked, ok)
		}
	}
}

func TestTopLevelTasks(t *testing.T) {
	content := "# 2024-01-01\n\n## 待办事项\n- [ ] buy milk\n  - [ ] 2%\n## 完成事项\n- [x] done\n"
	tasks := TopLevelTasks(content)
	if len(tasks) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(tasks), tasks)
	}
	if tasks[0].Text != "buy milk" || tasks[0].Section != SectionTodo || tasks[0].Line != 3 {
		t.Errorf("first task = %+v", tasks[0])
	}
	if !tasks[1].Checked || tasks[1].Section != SectionDone {
		t.Errorf("second task = %+v", tasks[1])
	}
}

func TestLines_Empty(t *testing.T) {
	if got := Lines(""); got != nil {
		t.Errorf("Lines(\"\") = %v", got)
	}
	if got := Lines("a\nb\n"); len(got) != 2 {
		t.Errorf("Lines = %v", got)
	}
}
