package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/intake-cli/internal/model"
)

type mockAppender struct {
	mock.Mock
}

func (m *mockAppender) AppendAudit(ctx context.Context, messageID string, entry model.AuditEntry) error {
	args := m.Called(ctx, messageID, entry)
	return args.Error(0)
}

var fixed = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func newTestRecorder(st Appender) *Recorder {
	r := NewRecorder(st)
	r.now = func() time.Time { return fixed }
	return r
}

func TestRecord_StripsNilDetails(t *testing.T) {
	st := &mockAppender{}
	st.On("AppendAudit", mock.Anything, "m1", model.AuditEntry{
		Timestamp: fixed,
		Status:    model.AuditSuccess,
		Message:   "Routed",
		Details:   map[string]any{"method": "pattern"},
	}).Return(nil).Once()

	newTestRecorder(st).Success(context.Background(), "m1", "Routed", map[string]any{"method": "pattern", "deal_id": nil})
	st.AssertExpectations(t)
}

func TestRecord_StatusHelpers(t *testing.T) {
	st := &mockAppender{}
	var got []model.AuditStatus
	st.On("AppendAudit", mock.Anything, "m1", mock.Anything).
		Run(func(args mock.Arguments) {
			got = append(got, args.Get(2).(model.AuditEntry).Status)
		}).Return(nil)

	r := newTestRecorder(st)
	ctx := context.Background()
	r.Info(ctx, "m1", "a", nil)
	r.Success(ctx, "m1", "b", nil)
	r.Warning(ctx, "m1", "c", nil)
	r.Skipped(ctx, "m1", "d", nil)
	r.Failure(ctx, "m1", "e", nil)

	assert.Equal(t, []model.AuditStatus{
		model.AuditInfo, model.AuditSuccess, model.AuditWarning, model.AuditSkipped, model.AuditFailure,
	}, got)
}

func TestRecord_SwallowsWriteErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	st := &mockAppender{}
	st.On("AppendAudit", mock.Anything, "m1", mock.Anything).Return(errors.New("disk full"))

	require.NotPanics(t, func() {
		newTestRecorder(st).Failure(context.Background(), "m1", "No routing found", nil)
	})

	entries := logs.FilterMessage("audit: failed to append entry").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "m1", entries[0].ContextMap()["message_id"])
}
