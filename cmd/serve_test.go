package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectorvault/appraise/internal/model"
	"github.com/collectorvault/appraise/internal/monitoring"
	"github.com/collectorvault/appraise/internal/provider"
	"github.com/collectorvault/appraise/internal/resilience"
	"github.com/collectorvault/appraise/internal/valuation"
)

type stubProvider struct {
	name      string
	available bool
	obs       []model.RawObservation
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return s.available }
func (s *stubProvider) FetchComparables(ctx context.Context, q model.PriceQuery) []model.RawObservation {
	return s.obs
}
func (s *stubProvider) Status() resilience.GuardStatus {
	return resilience.GuardStatus{Provider: s.name, State: "closed", WindowMax: 20}
}

func testEnv(providers ...provider.Provider) *env {
	reg := provider.NewRegistry()
	for _, p := range providers {
		reg.Register(p)
	}
	rec := monitoring.NewRecorder()
	svc := valuation.NewService(reg, nil, nil, rec, valuation.Config{})
	return &env{Registry: reg, Recorder: rec, Service: svc}
}

func TestRouter_Health(t *testing.T) {
	r := newRouter(testEnv())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Providers(t *testing.T) {
	r := newRouter(testEnv(&stubProvider{name: "scryvault", available: true}))

	req := httptest.NewRequest(http.MethodGet, "/v1/providers", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Providers []map[string]any    `json:"providers"`
		Metrics   monitoring.Snapshot `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Providers, 1)
	assert.Equal(t, "scryvault", body.Providers[0]["name"])
	assert.Equal(t, true, body.Providers[0]["available"])
}

func TestRouter_Valuations_Success(t *testing.T) {
	now := time.Now().UTC()
	obs := []model.RawObservation{
		{Source: "scryvault", Price: 48, Currency: "USD", ObservedAt: now},
		{Source: "scryvault", Price: 50, Currency: "USD", ObservedAt: now},
		{Source: "scryvault", Price: 52, Currency: "USD", ObservedAt: now},
		{Source: "scryvault", Price: 54, Currency: "USD", ObservedAt: now},
	}
	r := newRouter(testEnv(&stubProvider{name: "scryvault", available: true, obs: obs}))

	payload, _ := json.Marshal(map[string]any{"item_name": "Charizard", "set": "Base Set"})
	req := httptest.NewRequest(http.MethodPost, "/v1/valuations", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result model.ValuationResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, 4, result.ObservationCount)
	assert.Equal(t, []string{"scryvault"}, result.Sources)
}

func TestRouter_Valuations_InvalidBody(t *testing.T) {
	r := newRouter(testEnv(&stubProvider{name: "scryvault", available: true}))

	req := httptest.NewRequest(http.MethodPost, "/v1/valuations", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_Valuations_NoProviders(t *testing.T) {
	r := newRouter(testEnv(&stubProvider{name: "scryvault", available: false}))

	payload, _ := json.Marshal(map[string]any{"item_name": "Charizard"})
	req := httptest.NewRequest(http.MethodPost, "/v1/valuations", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouter_Valuations_NoData(t *testing.T) {
	r := newRouter(testEnv(&stubProvider{name: "scryvault", available: true}))

	payload, _ := json.Marshal(map[string]any{"item_name": "Charizard"})
	req := httptest.NewRequest(http.MethodPost, "/v1/valuations", bytes.NewReader(payload))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
