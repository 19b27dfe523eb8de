package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "shajara/internal/core/context"
	"shajara/internal/core/id"
	"shajara/internal/domain/permission"
)

type stubResolver struct {
	level permission.Level
}

func (r *stubResolver) Resolve(_ context.Context, _, _ id.ID) (permission.Level, error) {
	return r.level, nil
}

// recordingTxm satisfies tx.Manager and records the statement budget it was
// handed.
type recordingTxm struct {
	timeout time.Duration
	calls   int
}

func (m *recordingTxm) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *recordingTxm) RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	m.timeout = timeout
	m.calls++
	return fn(ctx)
}

func TestPermissionCheck_RunsUnderStatementBudget(t *testing.T) {
	gin.SetMode(gin.TestMode)

	txm := &recordingTxm{}
	h := NewPermissionHandler(NewBaseHandler(), &stubResolver{level: permission.LevelInner}, txm, 3*time.Second)

	actorID := id.New()
	targetID := id.New()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/check/"+targetID.String(), nil)
	req = req.WithContext(appctx.WithActor(req.Context(), &appctx.ActorContext{
		AccountID: id.New(),
		ProfileID: &actorID,
	}))
	c.Request = req
	c.Params = gin.Params{{Key: "targetId", Value: targetID.String()}}

	h.Check(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, txm.calls, "resolve must run inside the bounded transaction")
	assert.Equal(t, 3*time.Second, txm.timeout)
	assert.Contains(t, w.Body.String(), string(permission.LevelInner))
}
