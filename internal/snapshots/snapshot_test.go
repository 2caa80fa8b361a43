package snapshots

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"nci-backend/internal/ingest"
	"nci-backend/internal/shared/storage/kv"
)

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Put(ctx context.Context, key string, value []byte) error {
	return errors.New("quota exceeded")
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 4, 15, 4, 5, 0, time.UTC)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	backend := kv.NewMemoryStore()
	store := NewStore(backend)
	store.now = fixedClock

	scores := map[int]int{}
	for id := 1; id <= 20; id++ {
		scores[id] = id%5 + 1
	}
	att := &ingest.Attachment{Name: "a.pdf", MimeType: ingest.MimePDF, Data: "QUJD"}
	saved, err := store.Save(context.Background(), Snapshot{
		Scores:       scores,
		InputText:    "hello",
		AttachedFile: att,
		AIReasoning:  map[int]string{3: "loaded language"},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !saved.Timestamp.Equal(fixedClock()) {
		t.Fatalf("unexpected timestamp %s", saved.Timestamp)
	}

	raw, _ := backend.Get(context.Background(), Key)
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("stored snapshot is not JSON: %v", err)
	}
	for _, k := range []string{"scores", "inputText", "attachedFile", "aiReasoning", "timestamp"} {
		if _, ok := generic[k]; !ok {
			t.Fatalf("stored snapshot missing %q: %s", k, raw)
		}
	}
	if generic["timestamp"] != "2026-03-04T15:04:05Z" {
		t.Fatalf("timestamp must be RFC 3339, got %v", generic["timestamp"])
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Scores) != 20 || loaded.Scores[4] != scores[4] {
		t.Fatalf("scores not restored: %v", loaded.Scores)
	}
	if loaded.InputText == nil || *loaded.InputText != "hello" {
		t.Fatalf("text not restored")
	}
	if !loaded.HasAttachedFile || loaded.AttachedFile == nil || *loaded.AttachedFile != *att {
		t.Fatalf("attachment not restored: %+v", loaded.AttachedFile)
	}
	if loaded.AIReasoning[3] != "loaded language" {
		t.Fatalf("reasoning not restored: %v", loaded.AIReasoning)
	}
	if !strings.HasPrefix(loaded.Notice(), "Loaded analysis from ") {
		t.Fatalf("unexpected notice %q", loaded.Notice())
	}
}

func TestLoadNothingSaved(t *testing.T) {
	_, err := NewStore(kv.NewMemoryStore()).Load(context.Background())
	if !errors.Is(err, ErrNothingSaved) {
		t.Fatalf("expected ErrNothingSaved, got %v", err)
	}
	if err.Error() != "No saved analysis found." {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestSaveFailureIsWrapped(t *testing.T) {
	_, err := NewStore(failingStore{}).Save(context.Background(), Snapshot{})
	if !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("expected ErrSaveFailed, got %v", err)
	}
}

func TestLoadReadFailureIsNotCorruption(t *testing.T) {
	_, err := NewStore(failingStore{}).Load(context.Background())
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
	if errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("backend read error reported as corrupt: %v", err)
	}
	if !strings.Contains(err.Error(), "disk on fire") {
		t.Fatalf("cause dropped: %v", err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, l Loaded, err error)
	}{
		{
			name: "not json",
			raw:  "{oops",
			check: func(t *testing.T, _ Loaded, err error) {
				if !errors.Is(err, ErrCorruptSnapshot) {
					t.Fatalf("expected ErrCorruptSnapshot, got %v", err)
				}
			},
		},
		{
			name: "json null",
			raw:  "null",
			check: func(t *testing.T, _ Loaded, err error) {
				if !errors.Is(err, ErrCorruptSnapshot) {
					t.Fatalf("expected ErrCorruptSnapshot, got %v", err)
				}
			},
		},
		{
			name: "scores of wrong type",
			raw:  `{"scores":"high"}`,
			check: func(t *testing.T, _ Loaded, err error) {
				if !errors.Is(err, ErrCorruptSnapshot) {
					t.Fatalf("expected ErrCorruptSnapshot, got %v", err)
				}
			},
		},
		{
			name: "partial snapshot leaves absent fields unset",
			raw:  `{"scores":{"2":4}}`,
			check: func(t *testing.T, l Loaded, err error) {
				if err != nil {
					t.Fatalf("Decode: %v", err)
				}
				if l.Scores[2] != 4 || len(l.Scores) != 1 {
					t.Fatalf("unexpected scores %v", l.Scores)
				}
				if l.InputText != nil || l.HasAttachedFile || l.HasReasoning {
					t.Fatalf("absent fields must stay unset: %+v", l)
				}
				if l.Notice() != "Loaded analysis from unknown date" {
					t.Fatalf("unexpected notice %q", l.Notice())
				}
			},
		},
		{
			name: "out of range and unknown ids are sanitized",
			raw:  `{"scores":{"1":9,"2":-4,"3":2.6,"99":5,"x":3}}`,
			check: func(t *testing.T, l Loaded, err error) {
				if err != nil {
					t.Fatalf("Decode: %v", err)
				}
				want := map[int]int{1: 5, 2: 1, 3: 3}
				if len(l.Scores) != len(want) {
					t.Fatalf("unexpected scores %v", l.Scores)
				}
				for id, v := range want {
					if l.Scores[id] != v {
						t.Fatalf("score %d = %d, want %d", id, l.Scores[id], v)
					}
				}
			},
		},
		{
			name: "explicit null attachment clears",
			raw:  `{"attachedFile":null,"inputText":""}`,
			check: func(t *testing.T, l Loaded, err error) {
				if err != nil {
					t.Fatalf("Decode: %v", err)
				}
				if !l.HasAttachedFile || l.AttachedFile != nil {
					t.Fatalf("expected explicit clear, got %+v", l)
				}
				if l.InputText == nil || *l.InputText != "" {
					t.Fatalf("expected empty text to be applied")
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			l, err := Decode([]byte(tt.raw))
			tt.check(t, l, err)
		})
	}
}
