package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"fairroute/internal/config"
)

func TestTenantScope(t *testing.T) {
	s := &Server{Log: zap.NewNop()}
	var got []string
	h := s.tenantScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := TenantFromContext(r.Context())
		require.True(t, ok)
		_, via := s.withTenant(r)
		assert.Equal(t, tenant, via)
		got = append(got, tenant)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/routes", nil)
	req.Header.Set("X-Tenant-Id", "t_acme")
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/routes", nil))

	assert.Equal(t, []string{"t_acme", config.DefaultTenant}, got)

	_, ok := TenantFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}

func TestServerErrorsLogTenant(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := &Server{Log: zap.New(core)}
	h := s.tenantScope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, "Broken", errors.New("disk on fire"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/routes", nil)
	req.Header.Set("X-Tenant-Id", "t_acme")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	entries := logs.FilterField(zap.String("tenant", "t_acme")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Broken", entries[0].Message)
}
