package snapshots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"nci-backend/internal/criteria"
	"nci-backend/internal/ingest"
	"nci-backend/internal/shared/storage/kv"
)

// Key is the single storage key every backend holds.
const Key = "nci_analysis_v1"

// Snapshot is the persisted form of a session.
type Snapshot struct {
	Scores       map[int]int        `json:"scores"`
	InputText    string             `json:"inputText"`
	AttachedFile *ingest.Attachment `json:"attachedFile"`
	AIReasoning  map[int]string     `json:"aiReasoning"`
	Timestamp    time.Time          `json:"timestamp"`
}

// Loaded carries only the fields present in a stored snapshot. Absent fields
// leave the corresponding session state untouched.
type Loaded struct {
	Scores          map[int]int
	InputText       *string
	HasAttachedFile bool
	AttachedFile    *ingest.Attachment
	AIReasoning     map[int]string
	HasReasoning    bool
	Timestamp       time.Time
}

// Notice is the message shown after a successful load.
func (l Loaded) Notice() string {
	if l.Timestamp.IsZero() {
		return "Loaded analysis from unknown date"
	}
	return "Loaded analysis from " + l.Timestamp.Local().Format("1/2/2006")
}

// Store reads and writes the snapshot through a kv backend.
type Store struct {
	kv  kv.Store
	now func() time.Time
}

// NewStore binds a backend.
func NewStore(backend kv.Store) *Store {
	return &Store{kv: backend, now: time.Now}
}

// Save overwrites the stored snapshot. The timestamp is set here.
func (s *Store) Save(ctx context.Context, snap Snapshot) (Snapshot, error) {
	snap.Timestamp = s.now().UTC()
	if snap.Scores == nil {
		snap.Scores = map[int]int{}
	}
	if snap.AIReasoning == nil {
		snap.AIReasoning = map[int]string{}
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: marshal: %w", ErrSaveFailed, err)
	}
	if err := s.kv.Put(ctx, Key, payload); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	return snap, nil
}

// Raw returns the stored bytes without interpretation.
func (s *Store) Raw(ctx context.Context) ([]byte, error) {
	raw, err := s.kv.Get(ctx, Key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNothingSaved
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return raw, nil
}

// Load reads and decodes the stored snapshot.
func (s *Store) Load(ctx context.Context) (Loaded, error) {
	raw, err := s.Raw(ctx)
	if err != nil {
		return Loaded{}, err
	}
	return Decode(raw)
}

// Decode parses a stored snapshot. Score entries pass through the same rules
// as interactive edits: unknown ids are dropped and values are clamped.
func Decode(raw []byte) (Loaded, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Loaded{}, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if fields == nil {
		return Loaded{}, fmt.Errorf("%w: snapshot is null", ErrCorruptSnapshot)
	}

	var out Loaded
	if v, ok := fields["scores"]; ok && !isNull(v) {
		var rawScores map[string]float64
		if err := json.Unmarshal(v, &rawScores); err != nil {
			return Loaded{}, fmt.Errorf("%w: scores: %w", ErrCorruptSnapshot, err)
		}
		out.Scores = make(map[int]int, len(rawScores))
		for k, score := range rawScores {
			id, err := strconv.Atoi(k)
			if err != nil || !criteria.Known(id) {
				continue
			}
			out.Scores[id] = criteria.ClampScore(int(math.Round(score)))
		}
	}
	if v, ok := fields["inputText"]; ok && !isNull(v) {
		var text string
		if err := json.Unmarshal(v, &text); err != nil {
			return Loaded{}, fmt.Errorf("%w: inputText: %w", ErrCorruptSnapshot, err)
		}
		out.InputText = &text
	}
	if v, ok := fields["attachedFile"]; ok {
		out.HasAttachedFile = true
		if !isNull(v) {
			var att ingest.Attachment
			if err := json.Unmarshal(v, &att); err != nil {
				return Loaded{}, fmt.Errorf("%w: attachedFile: %w", ErrCorruptSnapshot, err)
			}
			out.AttachedFile = &att
		}
	}
	if v, ok := fields["aiReasoning"]; ok && !isNull(v) {
		var reasons map[string]string
		if err := json.Unmarshal(v, &reasons); err != nil {
			return Loaded{}, fmt.Errorf("%w: aiReasoning: %w", ErrCorruptSnapshot, err)
		}
		out.HasReasoning = true
		out.AIReasoning = make(map[int]string, len(reasons))
		for k, text := range reasons {
			id, err := strconv.Atoi(k)
			if err != nil || !criteria.Known(id) {
				continue
			}
			out.AIReasoning[id] = text
		}
	}
	if v, ok := fields["timestamp"]; ok {
		var ts string
		if json.Unmarshal(v, &ts) == nil {
			if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				out.Timestamp = parsed
			}
		}
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
