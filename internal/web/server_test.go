package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"github.com/vitos/binary_mg_bot/internal/usecase"
	"go.uber.org/zap"
)

type fakeController struct {
	stops int
}

func (f *fakeController) Status() usecase.Status {
	return usecase.Status{
		State:        usecase.StateAwaitSignal,
		StopRequests: f.stops,
		Aggregates:   domain.SessionAggregates{SessionID: "s-1", CurrentBalance: 1012.8, Wins: 1},
	}
}

func (f *fakeController) Stop() bool {
	f.stops++
	return f.stops >= 2
}

type fakeLedger struct {
	seqs   []*domain.Sequence
	alerts []*domain.Alert
	err    error
}

func (f *fakeLedger) Sequences(context.Context) ([]*domain.Sequence, error) { return f.seqs, f.err }

func (f *fakeLedger) Alerts(context.Context) ([]*domain.Alert, error) { return f.alerts, f.err }

func newTestServer(ctrl Controller, ledger LedgerReader) *Server {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "mgbot_sequences_total 0")
	})
	return NewServer(0, ctrl, ledger, metrics, zap.NewNop())
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStatus(t *testing.T) {
	s := newTestServer(&fakeController{}, &fakeLedger{})
	rec := do(t, s, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var st usecase.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, usecase.StateAwaitSignal, st.State)
	assert.Equal(t, 1012.8, st.Aggregates.CurrentBalance)
}

func TestSequences_Limit(t *testing.T) {
	ledger := &fakeLedger{}
	for i := 0; i < 5; i++ {
		ledger.seqs = append(ledger.seqs, &domain.Sequence{ID: fmt.Sprintf("q-%d", i), Outcome: domain.SequenceWin})
	}
	s := newTestServer(&fakeController{}, ledger)

	rec := do(t, s, http.MethodGet, "/sequences?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []domain.Sequence
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "q-3", got[0].ID)
	assert.Equal(t, "q-4", got[1].ID)

	rec = do(t, s, http.MethodGet, "/sequences?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlerts_StoreError(t *testing.T) {
	s := newTestServer(&fakeController{}, &fakeLedger{err: errors.New("disk gone")})
	rec := do(t, s, http.MethodGet, "/alerts")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStop_GracefulThenHalt(t *testing.T) {
	ctrl := &fakeController{}
	s := newTestServer(ctrl, &fakeLedger{})

	rec := do(t, s, http.MethodPost, "/stop")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"graceful"`)

	rec = do(t, s, http.MethodPost, "/stop")
	assert.Contains(t, rec.Body.String(), `"halt"`)

	rec = do(t, s, http.MethodGet, "/stop")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(&fakeController{}, &fakeLedger{})
	rec := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mgbot_sequences_total")
}
