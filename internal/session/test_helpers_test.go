package session

import (
	"context"
	"sync"

	"nci-backend/internal/ingest"
	"nci-backend/internal/llm"
	"nci-backend/internal/shared/epoch"
	"nci-backend/internal/shared/storage/kv"
	"nci-backend/internal/snapshots"
)

type call struct {
	input llm.Input
	reply chan reply
}

type reply struct {
	res llm.Result
	err error
}

// gatedClient blocks every Analyze until the test releases it.
type gatedClient struct {
	mu    sync.Mutex
	calls chan call
}

func newGatedClient() *gatedClient {
	return &gatedClient{calls: make(chan call, 8)}
}

func (g *gatedClient) Analyze(ctx context.Context, input llm.Input) (llm.Result, error) {
	c := call{input: input, reply: make(chan reply, 1)}
	g.calls <- c
	select {
	case r := <-c.reply:
		return r.res, r.err
	case <-ctx.Done():
		return llm.Result{}, ctx.Err()
	}
}

type staticClient struct {
	res llm.Result
	err error
}

func (s staticClient) Analyze(ctx context.Context, input llm.Input) (llm.Result, error) {
	if !input.HasContent() {
		return llm.Result{}, llm.ErrNoContent
	}
	return s.res, s.err
}

func uniformResult(score int, note string) llm.Result {
	res := llm.Result{Scores: map[int]int{}, Reasoning: map[int]string{}}
	for id := 1; id <= 20; id++ {
		res.Scores[id] = score
		res.Reasoning[id] = note
	}
	return res
}

func newTestService(client llm.Client) (*Service, *kv.MemoryStore) {
	backend := kv.NewMemoryStore()
	svc := NewService(New(), ingest.New(ingest.Options{}), client, snapshots.NewStore(backend))
	return svc, backend
}

func allScoresEqual(scores map[int]int, want int) bool {
	if len(scores) != 20 {
		return false
	}
	for _, v := range scores {
		if v != want {
			return false
		}
	}
	return true
}

// forceBegin starts a run without the busy check, superseding any outstanding
// one, the way a second click would if the control were not disabled.
func forceBegin(s *Session) (epoch.Token, llm.Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginLocked()
}
