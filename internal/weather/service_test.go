package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/geofs-atc/pkg/logger"
)

const metarJSON = `[{"icaoId":"KJFK","reportTime":"2025-01-01T12:00:00Z","temp":4.4,"dewp":-2.8,"wdir":310,"wspd":14,"visib":"10+","altim":1021.5,"rawOb":"KJFK 011151Z 31014KT 10SM FEW050 04/M03 A3017","name":"New York/JFK Intl, NY, US","fltCat":"VFR"}]`

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.APIBaseURL = srv.URL
	cfg.MaxRetries = 1
	return NewService(NewClient(cfg, logger.NewNop()), cfg, logger.NewNop())
}

func TestLatestFetchesAndCaches(t *testing.T) {
	var hits atomic.Int32
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/metar", r.URL.Path)
		assert.Equal(t, "KJFK", r.URL.Query().Get("ids"))
		w.Write([]byte(metarJSON))
	})

	m, err := s.Latest(context.Background(), "KJFK")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "310", m.WindDirection())
	temp, ok := m.Temperature()
	assert.True(t, ok)
	assert.InDelta(t, 4.4, temp, 1e-9)

	_, err = s.Latest(context.Background(), "KJFK")
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())
}

func TestLatestNoReport(t *testing.T) {
	var hits atomic.Int32
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	m, err := s.Latest(context.Background(), "XXXX")
	require.NoError(t, err)
	assert.Nil(t, m)

	// The miss is cached
	_, _ = s.Latest(context.Background(), "XXXX")
	assert.EqualValues(t, 1, hits.Load())
}

func TestLatestRetriesThenFails(t *testing.T) {
	var hits atomic.Int32
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := s.Latest(context.Background(), "KJFK")
	assert.Error(t, err)
	assert.EqualValues(t, 2, hits.Load())
}
