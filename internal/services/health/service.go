package health

// Service encapsulates health-related checks.
type Service struct {
	Provider      string
	SnapshotStore string
}

// NewService constructs a new health service.
func NewService(provider, snapshotStore string) *Service {
	return &Service{Provider: provider, SnapshotStore: snapshotStore}
}

// Status returns a simple health payload.
func (s *Service) Status() map[string]any {
	if s == nil {
		return map[string]any{"ok": true}
	}
	return map[string]any{
		"ok":            true,
		"provider":      s.Provider,
		"snapshotStore": s.SnapshotStore,
	}
}
