package pasttasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/starford/daylog/internal/notes"
	"github.com/starford/daylog/internal/storage"
)

// Path is where the dismissed set lives inside the repository.
const Path = ".desktop_data/past_uncompleted.json"

// State is the persisted part of the scanner: ids the user dismissed and the
// day they last looked.
type State struct {
	Dismissed   []string `json:"dismissed"`
	LastChecked string   `json:"lastChecked"`
}

// Load reads the state file. A missing file yields an empty state.
func Load(files storage.Provider) (State, error) {
	data, err := files.Read(Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{Dismissed: []string{}}, nil
		}
		return State{}, fmt.Errorf("pasttasks: load: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("pasttasks: decode %s: %w", Path, err)
	}
	if st.Dismissed == nil {
		st.Dismissed = []string{}
	}
	return st, nil
}

// Save writes the state file. The caller commits it.
func Save(files storage.Provider, st State) error {
	if st.Dismissed == nil {
		st.Dismissed = []string{}
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("pasttasks: encode: %w", err)
	}
	if err := files.Write(Path, append(data, '\n')); err != nil {
		return fmt.Errorf("pasttasks: save: %w", err)
	}
	return nil
}

// Dismiss adds id to the dismissed set and stamps today. st is not modified.
func Dismiss(st State, id string, today notes.Date) State {
	out := State{
		Dismissed:   slices.Clone(st.Dismissed),
		LastChecked: today.String(),
	}
	if out.Dismissed == nil {
		out.Dismissed = []string{}
	}
	if !slices.Contains(out.Dismissed, id) {
		out.Dismissed = append(out.Dismissed, id)
	}
	return out
}
