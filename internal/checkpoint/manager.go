package checkpoint

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Manager tracks which assets a batch has finished so an interrupted run can resume.
// An empty file path keeps the state in memory only.
type Manager struct {
	mu       sync.Mutex
	state    *State
	filePath string
}

// NewManager loads or initializes the checkpoint at filePath.
func NewManager(filePath string) (*Manager, error) {
	state := &State{Done: map[string]time.Time{}}
	if filePath != "" {
		var err error
		if state, err = LoadState(filePath); err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
	}
	return &Manager{state: state, filePath: filePath}, nil
}

// Begin tags the checkpoint with the current run.
func (m *Manager) Begin(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.RunID = runID
}

// IsDone reports whether the asset was already scored at exactly asOf. A newer
// snapshot makes the asset due again.
func (m *Manager) IsDone(assetID string, asOf time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	done, ok := m.state.Done[assetID]
	return ok && done.Equal(asOf.UTC())
}

// MarkDone records the asset as scored at asOf and persists the state.
func (m *Manager) MarkDone(assetID string, asOf time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Done[assetID] = asOf.UTC()
	return m.save()
}

// Reset forgets all completed assets.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Done = map[string]time.Time{}
	log.Info().Msg("checkpoint reset")
	return m.save()
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.state
	cp.Done = make(map[string]time.Time, len(m.state.Done))
	for k, v := range m.state.Done {
		cp.Done[k] = v
	}
	return cp
}

func (m *Manager) save() error {
	if m.filePath == "" {
		return nil
	}
	return SaveState(m.filePath, m.state)
}
