package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaizumaki/kabuscan/internal/alert"
	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/pkg/logger"
)

func newAlertRouter(t *testing.T) (*mux.Router, *alert.Engine) {
	t.Helper()

	engine, err := alert.NewEngine(context.Background(), alert.NewMemStore(),
		alert.NewLogNotifier(logger.NewNop()), alert.NewStaticBaseline(nil), logger.NewNop())
	require.NoError(t, err)

	h := NewAlertHandler(engine, logger.NewNop())

	r := mux.NewRouter()
	r.HandleFunc("/api/alerts", h.List).Methods("GET")
	r.HandleFunc("/api/alerts", h.Create).Methods("POST")
	r.HandleFunc("/api/alerts/{id}", h.Get).Methods("GET")
	r.HandleFunc("/api/alerts/{id}", h.Delete).Methods("DELETE")
	r.HandleFunc("/api/alerts/{id}/toggle", h.Toggle).Methods("POST")
	r.HandleFunc("/api/alerts/{id}/status", h.SetStatus).Methods("PUT")
	return r, engine
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAlertAPI_CreateAndGet(t *testing.T) {
	router, _ := newAlertRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/alerts", CreateAlertRequest{
		InstrumentCode: "7203",
		Kind:           contracts.AlertPriceThreshold,
		Condition:      contracts.AlertCondition{Operator: contracts.OpGTE, Threshold: 3000},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Alert contracts.Alert `json:"alert"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, contracts.AlertActive, created.Alert.Status)

	rec = doJSON(t, router, http.MethodGet, "/api/alerts/"+created.Alert.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAlertAPI_CreateRejectsBadCondition(t *testing.T) {
	router, _ := newAlertRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/alerts", CreateAlertRequest{
		InstrumentCode: "7203",
		Kind:           contracts.AlertPriceThreshold,
		Condition:      contracts.AlertCondition{Operator: "==", Threshold: 3000},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertAPI_ToggleAndStatus(t *testing.T) {
	router, engine := newAlertRouter(t)

	created, err := engine.Create(context.Background(), contracts.AlertPriceThreshold, "7203",
		contracts.AlertCondition{Operator: contracts.OpGTE, Threshold: 3000})
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/alerts/%s/toggle", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var toggled struct {
		Alert contracts.Alert `json:"alert"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggled))
	assert.Equal(t, contracts.AlertDisabled, toggled.Alert.Status)

	// disabled -> triggered is an illegal transition.
	rec = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/alerts/%s/status", created.ID),
		SetStatusRequest{Status: contracts.AlertTriggered})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/alerts/%s/status", created.ID),
		SetStatusRequest{Status: contracts.AlertActive})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAlertAPI_DeleteUnknown(t *testing.T) {
	router, _ := newAlertRouter(t)

	rec := doJSON(t, router, http.MethodDelete, "/api/alerts/al-missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
