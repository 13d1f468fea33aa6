package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	backfillStateKey  = "backfill:state"
	backfillCursorKey = "backfill:cursor"
)

// BackfillStateSnapshot loads the persisted singleton job state. A missing
// record reports an idle job.
func (s *Store) BackfillStateSnapshot(ctx context.Context) (BackfillState, error) {
	raw, ok, err := s.GetKV(ctx, backfillStateKey)
	if err != nil {
		return BackfillState{}, err
	}
	if !ok {
		return BackfillState{Status: BackfillIdle}, nil
	}
	var state BackfillState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return BackfillState{}, fmt.Errorf("decode backfill state: %w", err)
	}
	if state.Status == "" {
		state.Status = BackfillIdle
	}
	return state, nil
}

// SaveBackfillState persists the singleton job state.
func (s *Store) SaveBackfillState(ctx context.Context, state BackfillState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode backfill state: %w", err)
	}
	return s.SetKV(ctx, backfillStateKey, string(raw), 0)
}

// BackfillCursor returns the persisted window rotation cursor. The cursor is
// stored separately from job state so it survives failed runs.
func (s *Store) BackfillCursor(ctx context.Context) (int, error) {
	raw, ok, err := s.GetKV(ctx, backfillCursorKey)
	if err != nil || !ok {
		return 0, err
	}
	cursor, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return cursor, nil
}

// SaveBackfillCursor persists the window rotation cursor.
func (s *Store) SaveBackfillCursor(ctx context.Context, cursor int) error {
	return s.SetKV(ctx, backfillCursorKey, strconv.Itoa(cursor), 0)
}
