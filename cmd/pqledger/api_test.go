package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/pzverkov/quantum-agility/internal/errors"
	"github.com/pzverkov/quantum-agility/pkg/config"
	"github.com/pzverkov/quantum-agility/pkg/hybridkem"
	"github.com/pzverkov/quantum-agility/pkg/hybridsig"
	"github.com/pzverkov/quantum-agility/pkg/ledger"
	"github.com/pzverkov/quantum-agility/pkg/metrics"
	"github.com/pzverkov/quantum-agility/pkg/registry"
)

func newTestServer(t *testing.T, gate ledger.Gate) (*httptest.Server, *ledger.Ledger) {
	t.Helper()
	l, err := ledger.New(context.Background(), ledger.Options{
		KEMMode:      hybridkem.HybridMode(registry.Lattice),
		SigMode:      hybridsig.HybridMode(registry.LatticeDSA),
		Confidential: true,
		Gate:         gate,
		Logger:       metrics.NullLogger(),
		Collector:    metrics.NewCollector(nil),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	a := &app{
		cfg:       config.Default(),
		logger:    metrics.NullLogger(),
		tracer:    metrics.NoOpTracer{},
		collector: metrics.NewCollector(nil),
	}
	srv := httptest.NewServer(newServer(l, a).Handler())
	t.Cleanup(srv.Close)
	return srv, l
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func post(t *testing.T, url, body string) (int, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/octet-stream", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func TestAPICommitAndRead(t *testing.T) {
	srv, l := newTestServer(t, nil)

	for i, msg := range []string{"alpha", "beta"} {
		code, body := post(t, srv.URL+"/v1/entries", msg)
		require.Equal(t, http.StatusCreated, code, string(body))
		var resp commitResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		assert.Equal(t, uint64(i), resp.Index)
	}

	code, body := get(t, srv.URL+"/v1/entries/0")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alpha", string(body))

	code, body = get(t, srv.URL+"/v1/entries/latest")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "beta", string(body))

	code, body = get(t, srv.URL+"/v1/entries")
	assert.Equal(t, http.StatusOK, code)
	var list []entryInfo
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "hybrid-lattice", list[1].KEMMode)
	assert.False(t, list[1].Open)

	code, body = get(t, srv.URL+"/v1/verify")
	assert.Equal(t, http.StatusOK, code)
	var v verifyResponse
	require.NoError(t, json.Unmarshal(body, &v))
	assert.True(t, v.Valid)
	assert.Equal(t, 2, v.Entries)

	code, body = get(t, srv.URL+"/v1/status")
	assert.Equal(t, http.StatusOK, code)
	var s status
	require.NoError(t, json.Unmarshal(body, &s))
	assert.Equal(t, l.ID().String(), s.ID)
	assert.Equal(t, 2, s.Entries)
	assert.Equal(t, "hybrid-lattice-dsa", s.SigMode)
	assert.Len(t, s.Tip, 64)
}

func TestAPIErrors(t *testing.T) {
	deny := ledger.GateFunc(func(_ context.Context, p ledger.Proposal) bool {
		return !strings.Contains(string(p.Plaintext), "forbidden")
	})
	srv, _ := newTestServer(t, deny)

	code, _ := get(t, srv.URL+"/v1/entries/latest")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, srv.URL+"/v1/entries/7")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, srv.URL+"/v1/entries/minus-one")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = post(t, srv.URL+"/v1/entries", "forbidden words")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = get(t, srv.URL+"/v1/status")
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthEndpoints(t *testing.T) {
	srv, l := newTestServer(t, nil)

	code, body := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	var health metrics.HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, metrics.HealthStatusHealthy, health.Status)
	assert.Contains(t, health.Checks, "store")
	assert.Contains(t, health.Checks, "self_test")

	code, body = get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "pqledger_")

	require.NoError(t, l.Close())
	code, _ = get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("read: %w", qerrors.ErrEntryNotFound), http.StatusNotFound},
		{qerrors.ErrMessageTooLarge, http.StatusRequestEntityTooLarge},
		{qerrors.NewPolicyError("denied"), http.StatusForbidden},
		{qerrors.ErrKeyRetired, http.StatusGone},
		{qerrors.ErrWrongEraKey, http.StatusConflict},
		{qerrors.ErrLedgerClosed, http.StatusServiceUnavailable},
		{qerrors.NewConfigError("signer_key", "", errors.New("missing")), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.err), tt.err.Error())
	}
}
