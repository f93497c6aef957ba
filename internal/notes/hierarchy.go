// Package notes maps the YEAR/MM/DD.md convention of the note tree to dates
// and back. It performs directory reads but makes no write decisions.
package notes

import (
	"cmp"
	"fmt"
	"iter"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	noteExt   = ".md"
	assetsDir = "assets"
)

// PathFor returns the repository-relative note path for d ("2024/01/05.md").
func PathFor(d Date) string {
	return fmt.Sprintf("%04d/%02d/%02d%s", d.Year, int(d.Month), d.Day, noteExt)
}

// LegacyPathFor returns the older "YEAR/MM/MM-DD.md" path for d.
func LegacyPathFor(d Date) string {
	return fmt.Sprintf("%04d/%02d/%02d-%02d%s", d.Year, int(d.Month), int(d.Month), d.Day, noteExt)
}

// AttachmentPath returns "YEAR/MM/assets/filename".
func AttachmentPath(year, month, filename string) string {
	return path.Join(year, month, assetsDir, filename)
}

// AttachmentRef is the path a note in the same month uses to link to filename.
func AttachmentRef(filename string) string {
	return path.Join(assetsDir, filename)
}

// DateFromPath parses a note path back into its date. Both "YEAR/MM/DD.md"
// and the older "YEAR/MM/MM-DD.md" form are accepted.
func DateFromPath(p string) (Date, bool) {
	parts := strings.Split(filepath.ToSlash(p), "/")
	if len(parts) != 3 || !strings.HasSuffix(parts[2], noteExt) {
		return Date{}, false
	}
	year, month := parts[0], parts[1]
	day := strings.TrimSuffix(parts[2], noteExt)
	if prefix, rest, ok := strings.Cut(day, "-"); ok {
		if prefix != month {
			return Date{}, false
		}
		day = rest
	}
	if !validName(year) || !validName(month) || !validName(day) {
		return Date{}, false
	}
	d, err := ParseDate(fmt.Sprintf("%s-%s-%s", pad(year, 4), pad(month, 2), pad(day, 2)))
	if err != nil {
		return Date{}, false
	}
	return d, true
}

// ListYears yields the year directories under root.
func ListYears(root string) iter.Seq[string] {
	return listNumeric(root, true, "")
}

// ListMonths yields the month directories under root/year.
func ListMonths(root, year string) iter.Seq[string] {
	return listNumeric(filepath.Join(root, year), true, "")
}

// ListDays yields day names (without ".md") under root/year/month.
func ListDays(root, year, month string) iter.Seq[string] {
	return listNumeric(filepath.Join(root, year, month), false, noteExt)
}

// Entry is one note file found while walking the hierarchy.
type Entry struct {
	Date Date
	Path string
}

// Days walks every note in ascending date order. Names that do not form a
// real calendar day are skipped. The sequence re-reads the tree each time it
// is ranged over.
func Days(root string) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for year := range ListYears(root) {
			for month := range ListMonths(root, year) {
				for _, e := range monthEntries(root, year, month) {
					if !yield(e) {
						return
					}
				}
			}
		}
	}
}

// monthEntries returns the notes of one month ordered by day. DD.md and
// MM-DD.md names interleave, so filename order is not day order.
func monthEntries(root, year, month string) []Entry {
	var out []Entry
	for _, name := range dayFiles(filepath.Join(root, year, month)) {
		rel := path.Join(year, month, name)
		d, ok := DateFromPath(rel)
		if !ok {
			continue
		}
		out = append(out, Entry{Date: d, Path: rel})
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		return cmp.Compare(a.Date.Day, b.Date.Day)
	})
	return out
}

// dayFiles lists note file names in dir, including the MM-DD.md form.
func dayFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, noteExt) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func listNumeric(dir string, wantDir bool, suffix string) iter.Seq[string] {
	return func(yield func(string) bool) {
		// os.ReadDir returns entries sorted by filename.
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, ".") || e.IsDir() != wantDir {
				continue
			}
			if suffix != "" {
				if !strings.HasSuffix(name, suffix) {
					continue
				}
				name = strings.TrimSuffix(name, suffix)
			}
			if !validName(name) {
				continue
			}
			if !yield(name) {
				return
			}
		}
	}
}

// validName reports whether s is a 2 to 4 digit decimal number.
func validName(s string) bool {
	if len(s) < 2 || len(s) > 4 {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 16)
	return err == nil
}

func pad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}

// Template is the body written for a day that has no note yet.
func Template(d Date) string {
	return fmt.Sprintf("# %s\n\n## 待办事项\n\n- [ ] \n\n## 笔记\n\n\n## 附件\n\n", d)
}
