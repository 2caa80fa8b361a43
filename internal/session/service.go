package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"nci-backend/internal/ingest"
	"nci-backend/internal/llm"
	"nci-backend/internal/shared/epoch"
	"nci-backend/internal/shared/metrics"
	"nci-backend/internal/shared/telemetry"
	"nci-backend/internal/snapshots"
)

const defaultAnalysisTimeout = 2 * time.Minute

// Service coordinates ingestion, analysis and persistence around one Session.
type Service struct {
	Session   *Session
	Ingester  *ingest.Ingester
	LLM       llm.Client
	Snapshots *snapshots.Store
	Provider  string
	Model     string
	Timeout   time.Duration

	wg sync.WaitGroup
}

// NewService wires a Service. A nil client falls back to the placeholder,
// which fails every run with a missing credential.
func NewService(sess *Session, ing *ingest.Ingester, client llm.Client, store *snapshots.Store) *Service {
	if client == nil {
		client = llm.PlaceholderClient{}
	}
	return &Service{
		Session:   sess,
		Ingester:  ing,
		LLM:       client,
		Snapshots: store,
		Timeout:   defaultAnalysisTimeout,
	}
}

// Upload ingests a file and applies it. On failure the session keeps its
// prior content and shows the error.
func (s *Service) Upload(ctx context.Context, fileName string, data []byte) error {
	res, err := s.Ingester.Ingest(ctx, fileName, data)
	if err != nil {
		metrics.IncUploadRejected()
		telemetry.Error("upload.rejected", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"file_name":  fileName,
			"size_bytes": len(data),
			"err":        err,
		})
		s.Session.SetError(uploadMessage(fileName, err))
		return err
	}
	s.Session.ApplyIngest(res)
	telemetry.Info("upload.applied", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"file_name":  fileName,
		"size_bytes": len(data),
		"attachment": res.IsAttachment(),
	})
	return nil
}

// StartAnalysis begins a run in the background and returns its id.
func (s *Service) StartAnalysis(ctx context.Context) (string, error) {
	tok, input, err := s.Session.TryBeginAnalysis()
	if err != nil {
		return "", err
	}
	runID := s.started(ctx, tok)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(backgroundWithRequestID(ctx), runID, tok, input)
	}()
	return runID, nil
}

// AnalyzeNow runs an analysis synchronously and returns the resulting view.
func (s *Service) AnalyzeNow(ctx context.Context) (View, error) {
	tok, input, err := s.Session.TryBeginAnalysis()
	if err != nil {
		return View{}, err
	}
	runID := s.started(ctx, tok)
	if err := s.run(ctx, runID, tok, input); err != nil {
		return s.Session.View(), err
	}
	return s.Session.View(), nil
}

// Wait blocks until every background run has completed.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) started(ctx context.Context, tok epoch.Token) string {
	runID := ulid.Make().String()
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"run_id":            runID,
		"epoch":             uint64(tok),
		"provider":          s.Provider,
		"model":             s.Model,
		"status":            StatusAnalyzing,
		"status_transition": "idle->analyzing",
	})
	return runID
}

func (s *Service) run(ctx context.Context, runID string, tok epoch.Token, input llm.Input) (err error) {
	startedAt := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.complete(ctx, runID, tok, llm.Result{}, err, startedAt)
		}
	}()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultAnalysisTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := s.LLM.Analyze(callCtx, input)
	s.complete(ctx, runID, tok, res, err, startedAt)
	return err
}

func (s *Service) complete(ctx context.Context, runID string, tok epoch.Token, res llm.Result, runErr error, startedAt time.Time) {
	durationMs := time.Since(startedAt).Milliseconds()
	metrics.ObserveAnalysisDurationMs(float64(durationMs))
	fields := map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"run_id":      runID,
		"epoch":       uint64(tok),
		"duration_ms": durationMs,
	}

	var applied bool
	if runErr != nil {
		applied = s.Session.FailAnalysis(tok, MsgAnalysisFailed)
	} else {
		applied = s.Session.ApplyAnalysis(tok, res)
	}

	switch {
	case !applied:
		metrics.IncAnalysisDiscarded()
		fields["status"] = "discarded"
		fields["status_transition"] = "analyzing->discarded"
		if runErr != nil {
			fields["err"] = runErr
		}
		telemetry.Info("analysis.status", fields)
	case runErr != nil:
		metrics.IncAnalysisFailed()
		fields["status"] = "failed"
		fields["status_transition"] = "analyzing->failed"
		fields["err"] = runErr
		fields["error_code"] = failureCode(runErr)
		telemetry.Error("analysis.status", fields)
	default:
		metrics.IncAnalysisCompleted()
		fields["status"] = "completed"
		fields["status_transition"] = "analyzing->completed"
		fields["scored"] = len(res.Scores)
		telemetry.Info("analysis.status", fields)
	}
}

func failureCode(err error) string {
	switch {
	case errors.Is(err, llm.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, llm.ErrInvalidResponse), errors.Is(err, llm.ErrEmptyResponse):
		return "invalid_response"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "provider_error"
	}
}

// Reset restores the session defaults.
func (s *Service) Reset(ctx context.Context) {
	s.Session.Reset()
	telemetry.Info("session.reset", map[string]any{"request_id": requestIDFromContext(ctx)})
}

// RemoveAttachment drops the attached file. Editor text is kept.
func (s *Service) RemoveAttachment(ctx context.Context) {
	s.Session.ClearAttachment()
	telemetry.Info("attachment.removed", map[string]any{"request_id": requestIDFromContext(ctx)})
}

// Save persists the current session under the fixed key.
func (s *Service) Save(ctx context.Context) (snapshots.Snapshot, error) {
	saved, err := s.Snapshots.Save(ctx, s.Session.Snapshot())
	if err != nil {
		telemetry.Error("snapshot.save", map[string]any{"request_id": requestIDFromContext(ctx), "err": err})
		s.Session.SetError(snapshotMessage(err))
		return snapshots.Snapshot{}, err
	}
	metrics.IncSnapshotSaved()
	s.Session.SetNotice(MsgSaved)
	return saved, nil
}

// Load merges the saved snapshot into the session.
func (s *Service) Load(ctx context.Context) (snapshots.Loaded, error) {
	loaded, err := s.Snapshots.Load(ctx)
	if err != nil {
		if !errors.Is(err, snapshots.ErrNothingSaved) {
			telemetry.Error("snapshot.load", map[string]any{"request_id": requestIDFromContext(ctx), "err": err})
		}
		s.Session.SetError(snapshotMessage(err))
		return snapshots.Loaded{}, err
	}
	metrics.IncSnapshotLoaded()
	s.Session.ApplyLoaded(loaded)
	return loaded, nil
}
