package follow

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// state is the persisted resume position for one followed file.
type state struct {
	Path      string    `json:"path"`
	Offset    int64     `json:"offset"`
	UpdatedAt time.Time `json:"updated_at"`
}

func stateFile(dir string) string { return filepath.Join(dir, "follow-status.json") }

func loadState(dir string) (state, error) {
	b, err := os.ReadFile(stateFile(dir))
	if err != nil {
		return state{}, err
	}
	var st state
	if err := json.Unmarshal(b, &st); err != nil {
		return state{}, err
	}
	return st, nil
}

func saveState(dir string, st state) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp := stateFile(dir) + ".tmp"
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, stateFile(dir))
}
