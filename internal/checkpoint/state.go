package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// State records, per asset, the asOf hour of the last completed scoring.
type State struct {
	RunID     string               `json:"run_id"`
	Done      map[string]time.Time `json:"done"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// LoadState reads the checkpoint file. A missing file yields an empty state.
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Done: map[string]time.Time{}}, nil
		}
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.Done == nil {
		state.Done = map[string]time.Time{}
	}
	return &state, nil
}

// SaveState writes the checkpoint through a temp file so a crash never leaves it truncated.
func SaveState(filePath string, state *State) error {
	state.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(filePath), filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}
