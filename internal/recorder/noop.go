package recorder

import (
	"context"

	"RankRadar/internal/model"
)

// NoopRecorder discards all writes. It backs dry runs.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordScores(_ context.Context, _ []model.ScoreSnapshot) (int, error) { return 0, nil }
func (n *NoopRecorder) RecordWatchEntry(_ context.Context, _ *model.WatchListEntry) error    { return nil }
func (n *NoopRecorder) RecordRun(_ context.Context, _ *BatchRun) error                       { return nil }
func (n *NoopRecorder) Close() error                                                         { return nil }
