package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uastack/uacore/pkg/nodestore"
	"github.com/uastack/uacore/pkg/ua"
)

func TestHandleHealthz(t *testing.T) {
	s := NewServer("localhost:0", nil, nil)
	rr := httptest.NewRecorder()
	s.handleHealthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body healthzResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
}

func TestHandleDebugNodesWithoutStore(t *testing.T) {
	s := NewServer("localhost:0", nil, nil)
	r := s.router()

	req := httptest.NewRequest(http.MethodGet, "/debug/nodes/1", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHandleDebugNodesFiltersByNamespace(t *testing.T) {
	store := nodestore.NewStore()
	n1 := nodestore.NewNode(ua.NewNumericNodeId(1, 100), ua.ClassVariable, ua.QualifiedName{NamespaceIndex: 1, Name: "Temperature"})
	n2 := nodestore.NewNode(ua.NewNumericNodeId(2, 200), ua.ClassVariable, ua.QualifiedName{NamespaceIndex: 2, Name: "Pressure"})
	require.NoError(t, store.AddNode(n1))
	require.NoError(t, store.AddNode(n2))

	s := NewServer("localhost:0", store, nil)
	r := s.router()

	req := httptest.NewRequest(http.MethodGet, "/debug/nodes/1", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got []debugNode
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "Temperature", got[0].BrowseName)
}

func TestHandleDebugNodesInvalidNamespace(t *testing.T) {
	store := nodestore.NewStore()
	s := NewServer("localhost:0", store, nil)
	r := s.router()

	req := httptest.NewRequest(http.MethodGet, "/debug/nodes/not-a-number", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	m := NewMetrics()
	m.SessionCount.Set(3)

	s := NewServer("localhost:0", nil, m)
	r := s.router()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "uacore_session_active_sessions 3")
}
