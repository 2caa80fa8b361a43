package session

import (
	"errors"
	"math/rand"
	"testing"

	"nci-backend/internal/criteria"
	"nci-backend/internal/ingest"
	"nci-backend/internal/llm"
	"nci-backend/internal/snapshots"
)

func TestNewSessionDefaults(t *testing.T) {
	s := New()
	v := s.View()
	if !allScoresEqual(v.Scores, 1) {
		t.Fatalf("expected all scores 1, got %v", v.Scores)
	}
	if v.Total != 20 || v.Tier.Level != criteria.RiskLow || v.Status != StatusIdle {
		t.Fatalf("unexpected defaults %+v", v)
	}
}

func TestTotalTracksRandomEdits(t *testing.T) {
	s := New()
	rng := rand.New(rand.NewSource(7))
	want := map[int]int{}
	for id := 1; id <= 20; id++ {
		want[id] = 1
	}
	for i := 0; i < 500; i++ {
		id := rng.Intn(20) + 1
		val := rng.Intn(5) + 1
		if err := s.SetScore(id, val); err != nil {
			t.Fatalf("SetScore: %v", err)
		}
		want[id] = val

		sum := 0
		for _, v := range want {
			sum += v
		}
		total := s.Total()
		if total != sum {
			t.Fatalf("Total() = %d, want %d", total, sum)
		}
		if total < 20 || total > 100 {
			t.Fatalf("total %d out of [20,100]", total)
		}
	}
}

func TestSetScoreClampsAndRejectsUnknown(t *testing.T) {
	s := New()
	if err := s.SetScore(21, 3); !errors.Is(err, ErrUnknownCriterion) {
		t.Fatalf("expected ErrUnknownCriterion, got %v", err)
	}
	if err := s.SetScore(0, 3); !errors.Is(err, ErrUnknownCriterion) {
		t.Fatalf("expected ErrUnknownCriterion, got %v", err)
	}
	_ = s.SetScore(1, 9)
	_ = s.SetScore(2, -2)
	v := s.View()
	if v.Scores[1] != 5 || v.Scores[2] != 1 || len(v.Scores) != 20 {
		t.Fatalf("unexpected scores %v", v.Scores)
	}
}

func TestTierFollowsTotal(t *testing.T) {
	s := New()
	for id := 1; id <= 20; id++ {
		_ = s.SetScore(id, 5)
	}
	if s.Tier().Level != criteria.RiskExtreme {
		t.Fatalf("expected extreme at 100, got %s", s.Tier().Level)
	}
	for id := 1; id <= 20; id++ {
		_ = s.SetScore(id, 1)
	}
	for id := 1; id <= 10; id++ {
		_ = s.SetScore(id, 4)
	}
	// 10*4 + 10*1
	if got := s.Tier().Level; got != criteria.RiskModerate {
		t.Fatalf("expected moderate at 50, got %s", got)
	}
}

func TestResetDuringInFlightAnalysisDiscardsResult(t *testing.T) {
	s := New()
	s.SetInputText("breaking news")
	_ = s.SetScore(3, 4)

	tok, _, err := forceBegin(s)
	if err != nil {
		t.Fatalf("forceBegin: %v", err)
	}
	s.Reset()

	if s.ApplyAnalysis(tok, uniformResult(5, "stale")) {
		t.Fatal("stale result must be discarded after reset")
	}
	v := s.View()
	if !allScoresEqual(v.Scores, 1) || v.Total != 20 {
		t.Fatalf("scores must remain all 1, got %v", v.Scores)
	}
	if len(v.Reasoning) != 0 || v.InputText != "" || v.AttachedFile != nil || v.Analyzing {
		t.Fatalf("reset must clear state, got %+v", v)
	}
	if v.Notice != MsgReset {
		t.Fatalf("unexpected notice %q", v.Notice)
	}
	if s.FailAnalysis(tok, MsgAnalysisFailed) {
		t.Fatal("stale failure must be discarded after reset")
	}
	if s.View().Error != "" {
		t.Fatal("stale failure must not surface")
	}
}

func TestOverlappingAnalysesOnlyNewestApplies(t *testing.T) {
	s := New()
	s.SetInputText("text")

	tokA, _, err := forceBegin(s)
	if err != nil {
		t.Fatalf("begin A: %v", err)
	}
	tokB, _, err := forceBegin(s)
	if err != nil {
		t.Fatalf("begin B: %v", err)
	}

	if !s.ApplyAnalysis(tokB, uniformResult(3, "B")) {
		t.Fatal("B must apply")
	}
	if s.ApplyAnalysis(tokA, uniformResult(5, "A")) {
		t.Fatal("A resolved after B must be discarded")
	}
	v := s.View()
	if !allScoresEqual(v.Scores, 3) || v.Reasoning[1] != "B" {
		t.Fatalf("expected B's result, got %v %v", v.Scores, v.Reasoning)
	}
}

func TestTryBeginAnalysisGates(t *testing.T) {
	s := New()
	if _, _, err := s.TryBeginAnalysis(); !errors.Is(err, llm.ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
	s.SetInputText("   ")
	if _, _, err := s.TryBeginAnalysis(); !errors.Is(err, llm.ErrNoContent) {
		t.Fatalf("whitespace is not content, got %v", err)
	}
	s.ApplyIngest(ingest.Result{Attachment: &ingest.Attachment{Name: "a.pdf", MimeType: ingest.MimePDF, Data: "QUJD"}})

	tok, input, err := s.TryBeginAnalysis()
	if err != nil {
		t.Fatalf("TryBeginAnalysis: %v", err)
	}
	if input.File == nil || input.File.Data != "QUJD" {
		t.Fatalf("attachment not forwarded: %+v", input)
	}
	if _, _, err := s.TryBeginAnalysis(); !errors.Is(err, ErrAnalysisInProgress) {
		t.Fatalf("expected ErrAnalysisInProgress, got %v", err)
	}
	if !s.FailAnalysis(tok, MsgAnalysisFailed) {
		t.Fatal("current failure must apply")
	}
	v := s.View()
	if v.Analyzing || v.Error != MsgAnalysisFailed {
		t.Fatalf("unexpected view after failure %+v", v)
	}
}

func TestLenientPartialResultMerges(t *testing.T) {
	s := New()
	s.SetInputText("x")
	_ = s.SetScore(2, 4)
	tok, _, _ := forceBegin(s)
	s.ApplyAnalysis(tok, llm.Result{
		Scores:    map[int]int{1: 5, 99: 5},
		Reasoning: map[int]string{1: "why", 99: "ignored"},
	})
	v := s.View()
	if v.Scores[1] != 5 || v.Scores[2] != 4 || len(v.Scores) != 20 {
		t.Fatalf("partial merge broke invariants: %v", v.Scores)
	}
	if _, ok := v.Reasoning[99]; ok {
		t.Fatal("unknown ids must not enter reasoning")
	}
}

func TestApplyIngest(t *testing.T) {
	s := New()
	s.SetInputText("keep me")
	s.ApplyIngest(ingest.Result{Attachment: &ingest.Attachment{Name: "a.pdf", MimeType: ingest.MimePDF, Data: "QUJD"}})
	v := s.View()
	if v.AttachedFile == nil || v.AttachedFile.Size != 3 || v.InputText != "keep me" {
		t.Fatalf("pdf must attach and keep text: %+v", v)
	}

	s.ApplyIngest(ingest.Result{Text: "hello"})
	v = s.View()
	if v.InputText != "hello" || v.AttachedFile != nil {
		t.Fatalf("text must replace input and clear attachment: %+v", v)
	}
}

func TestApplyLoadedMergesPresentFields(t *testing.T) {
	s := New()
	s.SetInputText("current")
	s.ApplyIngest(ingest.Result{Attachment: &ingest.Attachment{Name: "a.pdf", MimeType: ingest.MimePDF, Data: "QUJD"}})

	s.ApplyLoaded(snapshots.Loaded{Scores: map[int]int{5: 4}})
	v := s.View()
	if v.Scores[5] != 4 || v.InputText != "current" || v.AttachedFile == nil {
		t.Fatalf("absent fields must not clobber state: %+v", v)
	}

	s.ApplyLoaded(snapshots.Loaded{HasAttachedFile: true})
	if s.View().AttachedFile != nil {
		t.Fatal("explicit null attachment must clear")
	}
}

func TestSubscribeKeepsOnlyLatestView(t *testing.T) {
	s := New()
	views, unsubscribe := s.Subscribe()
	defer unsubscribe()

	first := <-views
	if first.Total != 20 {
		t.Fatalf("initial view total = %d", first.Total)
	}
	for i := 2; i <= 5; i++ {
		_ = s.SetScore(1, i)
	}
	latest := <-views
	if latest.Scores[1] != 5 {
		t.Fatalf("expected latest view, got score %d", latest.Scores[1])
	}
	select {
	case v := <-views:
		t.Fatalf("intermediate view leaked: %+v", v)
	default:
	}

	unsubscribe()
	if _, ok := <-views; ok {
		t.Fatal("channel must be closed after unsubscribe")
	}
	_ = s.SetScore(2, 2)
}

func TestNoticeClearsOnNextEdit(t *testing.T) {
	tests := []struct {
		name string
		edit func(s *Session)
	}{
		{name: "score", edit: func(s *Session) { _ = s.SetScore(3, 4) }},
		{name: "text", edit: func(s *Session) { s.SetInputText("more") }},
		{name: "ingest", edit: func(s *Session) { s.ApplyIngest(ingest.Result{Text: "from file"}) }},
		{name: "remove attachment", edit: func(s *Session) { s.ClearAttachment() }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.Reset()
			if got := s.View().Notice; got != MsgReset {
				t.Fatalf("expected reset notice, got %q", got)
			}
			if got := s.View().Notice; got != MsgReset {
				t.Fatalf("reading the view must not clear the notice, got %q", got)
			}
			tt.edit(s)
			if got := s.View().Notice; got != "" {
				t.Fatalf("notice must clear after %s edit, got %q", tt.name, got)
			}
		})
	}
}
