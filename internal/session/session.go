package session

import (
	"fmt"
	"sync"

	"nci-backend/internal/criteria"
	"nci-backend/internal/ingest"
	"nci-backend/internal/llm"
	"nci-backend/internal/shared/epoch"
	"nci-backend/internal/snapshots"
)

// Session owns the single scoring state of the process. Every method is safe
// for concurrent use; mutations publish a fresh View to subscribers.
type Session struct {
	mu         sync.Mutex
	scores     map[int]int
	reasoning  map[int]string
	inputText  string
	attachment *ingest.Attachment
	analyzing  bool
	errMsg     string
	notice     string
	version    uint64

	gen epoch.Counter

	subs    map[int]chan View
	nextSub int
}

// New returns a session with every criterion scored 1.
func New() *Session {
	return &Session{
		scores:    defaultScores(),
		reasoning: map[int]string{},
		subs:      map[int]chan View{},
	}
}

func defaultScores() map[int]int {
	out := make(map[int]int, criteria.Count)
	for _, id := range criteria.IDs() {
		out[id] = criteria.MinScore
	}
	return out
}

// SetScore records a manual score. Values outside [1,5] are clamped.
func (s *Session) SetScore(id, value int) error {
	if !criteria.Known(id) {
		return fmt.Errorf("%w: %d", ErrUnknownCriterion, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[id] = criteria.ClampScore(value)
	s.notice = ""
	s.publishLocked()
	return nil
}

// Total is the sum of all 20 scores.
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sumScores(s.scores)
}

// Tier resolves the risk bucket of the current total.
func (s *Session) Tier() criteria.ScoreRange {
	return criteria.ResolveRiskTier(s.Total())
}

func sumScores(scores map[int]int) int {
	total := 0
	for _, v := range scores {
		total += v
	}
	return total
}

// SetInputText replaces the free text under analysis.
func (s *Session) SetInputText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputText = text
	s.notice = ""
	s.publishLocked()
}

// ApplyIngest applies a successful ingestion: text replaces the input and
// drops any attachment; a binary replaces the attachment and keeps the text.
func (s *Session) ApplyIngest(res ingest.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res.IsAttachment() {
		att := *res.Attachment
		s.attachment = &att
	} else {
		s.inputText = res.Text
		s.attachment = nil
	}
	s.errMsg = ""
	s.notice = ""
	s.publishLocked()
}

// ClearAttachment removes the attached file, if any.
func (s *Session) ClearAttachment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachment = nil
	s.notice = ""
	s.publishLocked()
}

// Reset restores defaults and invalidates any analysis still in flight.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen.Invalidate()
	s.scores = defaultScores()
	s.reasoning = map[int]string{}
	s.inputText = ""
	s.attachment = nil
	s.analyzing = false
	s.errMsg = ""
	s.notice = MsgReset
	s.publishLocked()
}

// SetError records a user-facing error and clears any notice.
func (s *Session) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = msg
	s.notice = ""
	s.publishLocked()
}

// SetNotice records a user-facing notice and clears any error. The notice
// lasts until the next edit.
func (s *Session) SetNotice(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = msg
	s.errMsg = ""
	s.publishLocked()
}

// TryBeginAnalysis starts a run unless one is already outstanding.
func (s *Session) TryBeginAnalysis() (epoch.Token, llm.Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analyzing {
		return 0, llm.Input{}, ErrAnalysisInProgress
	}
	return s.beginLocked()
}

func (s *Session) beginLocked() (epoch.Token, llm.Input, error) {
	input := s.inputLocked()
	if !input.HasContent() {
		return 0, llm.Input{}, llm.ErrNoContent
	}
	tok := s.gen.Begin()
	s.analyzing = true
	s.errMsg = ""
	s.notice = ""
	s.publishLocked()
	return tok, input, nil
}

func (s *Session) inputLocked() llm.Input {
	in := llm.Input{Text: s.inputText}
	if s.attachment != nil {
		in.File = &llm.InlineFile{MimeType: s.attachment.MimeType, Data: s.attachment.Data}
	}
	return in
}

// ApplyAnalysis merges a completed run's result when tok is still current.
// It reports false, leaving state untouched, for a superseded run.
func (s *Session) ApplyAnalysis(tok epoch.Token, res llm.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gen.IsCurrent(tok) {
		return false
	}
	for id, v := range res.Scores {
		if criteria.Known(id) {
			s.scores[id] = criteria.ClampScore(v)
		}
	}
	s.reasoning = make(map[int]string, len(res.Reasoning))
	for id, text := range res.Reasoning {
		if criteria.Known(id) {
			s.reasoning[id] = text
		}
	}
	s.analyzing = false
	s.publishLocked()
	return true
}

// FailAnalysis records a failed run when tok is still current.
func (s *Session) FailAnalysis(tok epoch.Token, msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gen.IsCurrent(tok) {
		return false
	}
	s.analyzing = false
	s.errMsg = msg
	s.publishLocked()
	return true
}

// Snapshot captures the persistable part of the state.
func (s *Session) Snapshot() snapshots.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshots.Snapshot{
		Scores:      copyScores(s.scores),
		InputText:   s.inputText,
		AIReasoning: copyReasoning(s.reasoning),
	}
	if s.attachment != nil {
		att := *s.attachment
		snap.AttachedFile = &att
	}
	return snap
}

// ApplyLoaded merges the fields present in a stored snapshot.
func (s *Session) ApplyLoaded(l snapshots.Loaded) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range l.Scores {
		if criteria.Known(id) {
			s.scores[id] = criteria.ClampScore(v)
		}
	}
	if l.InputText != nil {
		s.inputText = *l.InputText
	}
	if l.HasAttachedFile {
		if l.AttachedFile != nil {
			att := *l.AttachedFile
			s.attachment = &att
		} else {
			s.attachment = nil
		}
	}
	if l.HasReasoning {
		s.reasoning = copyReasoning(l.AIReasoning)
	}
	s.errMsg = ""
	s.notice = l.Notice()
	s.publishLocked()
}

// View returns an immutable copy of the state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	total := sumScores(s.scores)
	tier := criteria.ResolveRiskTier(total)
	v := View{
		Version:   s.version,
		Scores:    copyScores(s.scores),
		Reasoning: copyReasoning(s.reasoning),
		InputText: s.inputText,
		Total:     total,
		Tier:      tier,
		TierLabel: tier.Level.Label(),
		Status:    StatusIdle,
		Analyzing: s.analyzing,
		Error:     s.errMsg,
		Notice:    s.notice,
	}
	if s.analyzing {
		v.Status = StatusAnalyzing
	}
	if s.attachment != nil {
		v.AttachedFile = &AttachmentInfo{
			Name:     s.attachment.Name,
			MimeType: s.attachment.MimeType,
			Size:     attachmentSize(s.attachment.Data),
		}
	}
	return v
}

// Subscribe returns a channel receiving the latest View after each change.
// A slow reader only ever sees the most recent view. The returned func
// unsubscribes and closes the channel.
func (s *Session) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.viewLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) publishLocked() {
	s.version++
	if len(s.subs) == 0 {
		return
	}
	v := s.viewLocked()
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

func copyScores(in map[int]int) map[int]int {
	out := make(map[int]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyReasoning(in map[int]string) map[int]string {
	out := make(map[int]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
