package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/hitl-service/internal/ai"
	"github.com/spec-kit/hitl-service/internal/domain"
	"github.com/spec-kit/hitl-service/internal/repository"
)

// fakeCaseRepo is an in-memory stand-in for the pgx-backed repository.
// The guarded transitions mirror the SQL guards byte for byte in spirit:
// they check and mutate under one lock.
type fakeCaseRepo struct {
	mu         sync.Mutex
	cases      map[string]*domain.Case
	createErr  error
	getErr     error
	touchCalls int
}

func newFakeCaseRepo() *fakeCaseRepo {
	return &fakeCaseRepo{cases: make(map[string]*domain.Case)}
}

func (f *fakeCaseRepo) Create(_ context.Context, record *domain.Case) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	record.ID = uuid.NewString()
	record.CreatedAt = time.Now()
	clone := *record
	f.cases[record.ID] = &clone
	return nil
}

func (f *fakeCaseRepo) GetByID(_ context.Context, id string) (*domain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	record, ok := f.cases[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

func (f *fakeCaseRepo) List(_ context.Context, filter repository.CaseFilter) ([]domain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Case
	for _, record := range f.cases {
		if filter.Status != nil && record.Status != *filter.Status {
			continue
		}
		result = append(result, *record)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

func (f *fakeCaseRepo) MarkOpenAgentTouch(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touchCalls++
	record, ok := f.cases[id]
	if !ok || record.Status != domain.CaseStatusOpen {
		return false, nil
	}
	return true, nil
}

func (f *fakeCaseRepo) TransitionToInProgress(_ context.Context, id, assigneeID string) (*domain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.cases[id]
	if !ok || record.Status != domain.CaseStatusOpen {
		return nil, nil
	}
	record.Status = domain.CaseStatusInProgress
	record.AssigneeID = &assigneeID
	clone := *record
	return &clone, nil
}

func (f *fakeCaseRepo) Resolve(_ context.Context, id string, at time.Time) (*domain.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.cases[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	record.Status = domain.CaseStatusResolved
	record.ResolvedAt = &at
	clone := *record
	return &clone, nil
}

func (f *fakeCaseRepo) stored(id string) *domain.Case {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cases[id]
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  []domain.Message
	createErr error
	seq       int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (f *fakeMessageRepo) Create(_ context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.seq++
	msg.ID = uuid.NewString()
	// Monotonic stamps keep list ordering deterministic in tests.
	msg.CreatedAt = time.Unix(int64(f.seq), 0)
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeMessageRepo) ListByCase(_ context.Context, caseID string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Message
	for _, msg := range f.messages {
		if msg.CaseID == caseID {
			result = append(result, msg)
		}
	}
	return result, nil
}

func (f *fakeMessageRepo) ListRecent(_ context.Context, caseID string, limit int) ([]domain.Message, error) {
	all, _ := f.ListByCase(context.Background(), caseID)
	var result []domain.Message
	for i := len(all) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, all[i])
	}
	return result, nil
}

func (f *fakeMessageRepo) count(caseID string) int {
	all, _ := f.ListByCase(context.Background(), caseID)
	return len(all)
}

// fakeProvider records the prompt it was handed and replies with a
// canned completion.
type fakeProvider struct {
	reply      string
	err        error
	calls      int
	lastSystem string
	lastTurns  []ai.Turn
}

func (f *fakeProvider) ID() string { return "openai" }

func (f *fakeProvider) Complete(_ context.Context, system string, turns []ai.Turn) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastTurns = turns
	return f.reply, f.err
}
