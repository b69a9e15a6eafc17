package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/store"
)

// --- Mirror Mock ---

type mockMirror struct {
	mock.Mock
}

func (m *mockMirror) Organization(ctx context.Context, org *model.Organization) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *mockMirror) Deal(ctx context.Context, org *model.Organization, deal *model.Deal) error {
	args := m.Called(ctx, org, deal)
	return args.Error(0)
}

func (m *mockMirror) Amount(ctx context.Context, deal *model.Deal, amount float64) error {
	args := m.Called(ctx, deal, amount)
	return args.Error(0)
}

func (m *mockMirror) Note(ctx context.Context, deal *model.Deal, note *model.Note) error {
	args := m.Called(ctx, deal, note)
	return args.Error(0)
}

func (m *mockMirror) Task(ctx context.Context, deal *model.Deal, task *model.Task) error {
	args := m.Called(ctx, deal, task)
	return args.Error(0)
}

// --- Review Queue Mock ---

type mockReviewQueue struct {
	mock.Mock
}

func (m *mockReviewQueue) Submit(ctx context.Context, msg *model.InboundMessage, analysis model.Analysis) (string, error) {
	args := m.Called(ctx, msg, analysis)
	return args.String(0), args.Error(1)
}

// --- Locker Mock ---

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func(context.Context) error), args.Error(1)
}

// failingNoteStore wraps a real store and rejects note creation.
type failingNoteStore struct {
	store.Store
	err error
}

func (s *failingNoteStore) CreateNote(_ context.Context, _ *model.Note) error {
	return s.err
}
