package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/starford/daylog/internal/storage"
)

// Path is where statistics live inside the repository.
const Path = ".desktop_data/stats.json"

// Load reads the statistics file. A missing file yields empty statistics.
func Load(files storage.Provider) (Statistics, error) {
	data, err := files.Read(Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Empty(), nil
		}
		return Statistics{}, fmt.Errorf("stats: load: %w", err)
	}
	var s Statistics
	if err := json.Unmarshal(data, &s); err != nil {
		return Statistics{}, fmt.Errorf("stats: decode %s: %w", Path, err)
	}
	if s.Daily == nil {
		s.Daily = map[string]DailyStats{}
	}
	return s, nil
}

// Save writes s to the statistics file. The caller commits it.
func Save(files storage.Provider, s Statistics) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: encode: %w", err)
	}
	if err := files.Write(Path, append(data, '\n')); err != nil {
		return fmt.Errorf("stats: save: %w", err)
	}
	return nil
}
