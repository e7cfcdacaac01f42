package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ura-call-bridge/internal/domain/models"
	"ura-call-bridge/internal/domain/services"
	"ura-call-bridge/internal/domain/services/container"
	"ura-call-bridge/internal/infrastructure/ami"
	"ura-call-bridge/internal/infrastructure/config"
)

type fakeHangup struct {
	mu       sync.Mutex
	result   *services.HangupResult
	err      error
	ivrRef   string
	callID   string
	inFlight int
}

func (f *fakeHangup) Hangup(ctx context.Context, ivrReference, callID string) (*services.HangupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ivrRef, f.callID = ivrReference, callID
	if strings.TrimSpace(ivrReference) == "" || strings.TrimSpace(callID) == "" {
		return nil, services.ErrInvalidHangupRequest
	}
	return f.result, f.err
}

func (f *fakeHangup) HandleEvent(ami.Event) {}
func (f *fakeHangup) PendingCount() int    { return f.inFlight }
func (f *fakeHangup) Close()               {}

type fakeCallRecords struct {
	records []models.CallRecord
	err     error
	query   models.CallRecordQuery
}

func (f *fakeCallRecords) FindByCallID(ctx context.Context, callID string) (*models.CallRecord, error) {
	return nil, services.ErrCallRecordNotFound
}

func (f *fakeCallRecords) MarkInactive(ctx context.Context, callID string, update models.HangupUpdate) error {
	return nil
}

func (f *fakeCallRecords) MarkAllInactive(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeCallRecords) GetActiveCallRecords(ctx context.Context) ([]models.CallRecord, error) {
	return f.records, f.err
}

func (f *fakeCallRecords) SearchCallRecords(ctx context.Context, q models.CallRecordQuery) ([]models.CallRecord, models.PaginationResult, error) {
	f.query = q
	if f.err != nil {
		return nil, models.PaginationResult{}, f.err
	}
	return f.records, models.NewPaginationResult(int64(len(f.records)), 1, 20), nil
}

type fakeReconcile struct {
	modified int64
	err      error
}

func (f *fakeReconcile) Sweep(ctx context.Context) (int64, error) { return f.modified, f.err }
func (f *fakeReconcile) Run(ctx context.Context) error            { return nil }
func (f *fakeReconcile) Status() services.ReconcileStatus        { return services.ReconcileStatus{} }

type fakeStatus bool

func (s fakeStatus) Connected() bool { return bool(s) }

type fakeDatabase struct{ err error }

func (d fakeDatabase) HealthCheck(ctx context.Context) error { return d.err }

type fixture struct {
	hangup    *fakeHangup
	records   *fakeCallRecords
	reconcile *fakeReconcile
	hub       *services.EventHub
	router    *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		hangup:    &fakeHangup{},
		records:   &fakeCallRecords{},
		reconcile: &fakeReconcile{},
		hub:       services.NewEventHub(8),
	}
	c := container.New(container.Services{
		Config:     &config.Config{WSAllowedOrigins: []string{"*"}},
		Database:   fakeDatabase{},
		AMI:        fakeStatus(true),
		CallRecord: f.records,
		EventHub:   f.hub,
		Hangup:     f.hangup,
		Reconcile:  f.reconcile,
	})

	r := gin.New()
	r.POST("/api/hangup", HandleHangupFunc(c, "hangup"))
	r.GET("/api/call-records/active", HandleCallRecordFunc(c, "getActiveCallRecords"))
	r.GET("/api/call-records", HandleCallRecordFunc(c, "searchCallRecords"))
	r.POST("/api/call-records/reconcile", HandleCallRecordFunc(c, "reconcile"))
	r.GET("/api/ping", HandleHealthFunc(c, "ping"))
	r.GET("/api/health/status", HandleHealthFunc(c, "status"))
	r.GET("/socket", HandleEventStreamFunc(c, "stream"))
	f.router = r
	return f
}

func (f *fixture) do(method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var decoded map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func agentLeg() ami.ChannelSnapshot {
	return ami.ChannelSnapshot{
		Channel:  "PJSIP/1001-00000002",
		Uniqueid: "1700000000.13",
		Linkedid: "1700000000.12",
	}
}

func TestHangupSuccess(t *testing.T) {
	f := newFixture(t)
	f.hangup.result = &services.HangupResult{Channel: agentLeg()}

	w, body := f.do(http.MethodPost, "/api/hangup", `{"ivr_id":"55","uniqueid":"1700000000.12"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	channel := body["channel"].(map[string]interface{})
	assert.Equal(t, "PJSIP/1001-00000002", channel["channel"])
	assert.Equal(t, "55", f.hangup.ivrRef)
	assert.Equal(t, "1700000000.12", f.hangup.callID)
}

func TestHangupAcceptsNumericIvrID(t *testing.T) {
	f := newFixture(t)
	f.hangup.result = &services.HangupResult{Channel: agentLeg()}

	w, _ := f.do(http.MethodPost, "/api/hangup", `{"ivr_id":55,"uniqueid":"1700000000.12"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "55", f.hangup.ivrRef)
}

func TestHangupMissingFields(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(http.MethodPost, "/api/hangup", `{"uniqueid":"1700000000.12"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])

	w, _ = f.do(http.MethodPost, "/api/hangup", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHangupChannelNotFound(t *testing.T) {
	f := newFixture(t)
	f.hangup.err = &services.NotFoundError{Resource: services.ResourceChannel, CallID: "1700000000.99"}

	w, body := f.do(http.MethodPost, "/api/hangup", `{"ivr_id":"55","uniqueid":"1700000000.99"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "channel", body["reason"])
	assert.NotContains(t, body, "channel")
}

func TestHangupRecordNotFoundCarriesChannel(t *testing.T) {
	f := newFixture(t)
	leg := agentLeg()
	f.hangup.err = &services.NotFoundError{Resource: services.ResourceRecord, CallID: "1700000000.12", Channel: &leg}

	w, body := f.do(http.MethodPost, "/api/hangup", `{"ivr_id":"55","uniqueid":"1700000000.12"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "record", body["reason"])
	channel := body["channel"].(map[string]interface{})
	assert.Equal(t, "PJSIP/1001-00000002", channel["channel"])
}

func TestHangupErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"too many", services.ErrTooManyCommands, http.StatusTooManyRequests},
		{"timeout", services.ErrCommandTimeout, http.StatusInternalServerError},
		{"upstream", &services.UpstreamActionError{Action: "Hangup", Message: "No such channel"}, http.StatusInternalServerError},
		{"disconnected", ami.ErrNotConnected, http.StatusInternalServerError},
		{"closing", services.ErrCorrelatorClosed, http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.hangup.err = tc.err

			w, body := f.do(http.MethodPost, "/api/hangup", `{"ivr_id":"55","uniqueid":"1700000000.12"}`)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestGetActiveCallRecords(t *testing.T) {
	f := newFixture(t)
	f.records.records = []models.CallRecord{{Uniqueid: "1.2", Active: true}}

	w, body := f.do(http.MethodGet, "/api/call-records/active", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"], 1)
}

func TestSearchCallRecords(t *testing.T) {
	f := newFixture(t)
	f.records.records = []models.CallRecord{{Uniqueid: "1.2"}}

	w, body := f.do(http.MethodGet, "/api/call-records?q=2199&status=finished&page=2&page_size=10", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2199", f.records.query.Query)
	assert.Equal(t, models.CallRecordStatusFinished, f.records.query.Status)
	assert.Equal(t, 2, f.records.query.Page)
	data := body["data"].(map[string]interface{})
	assert.Contains(t, data, "pagination")
}

func TestSearchCallRecordsInvalidQuery(t *testing.T) {
	f := newFixture(t)
	f.records.err = services.ErrInvalidQuery

	w, _ := f.do(http.MethodGet, "/api/call-records?status=ringing", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(http.MethodGet, "/api/call-records?page=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	f.reconcile.modified = 4

	w, body := f.do(http.MethodPost, "/api/call-records/reconcile", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), body["data"].(map[string]interface{})["modified"])

	f.reconcile.err = services.ErrSweepInProgress
	w, _ = f.do(http.MethodPost, "/api/call-records/reconcile", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHealthStatus(t *testing.T) {
	f := newFixture(t)
	f.hangup.inFlight = 2

	w, body := f.do(http.MethodGet, "/api/health/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, true, data["ami_connected"])
	assert.Equal(t, float64(2), data["pending_hangups"])

	w, _ = f.do(http.MethodGet, "/api/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
