package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Matgc04/dssd-2025/project_planning/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLoggerRecordsOutcome(t *testing.T) {
	buf := new(bytes.Buffer)
	audit := NewAuditLogger(buf)

	handler := audit.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))

	req := httptest.NewRequest("GET", "/projects/detalle?projectId=p1", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.1")
	req = req.WithContext(context.WithValue(req.Context(), UserRequestContextKey, schema.User{Username: "colab-1", Role: schema.RoleCollaborating}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "colab-1", record["username"])
	assert.Equal(t, string(schema.RoleCollaborating), record["role"])
	assert.Equal(t, "10.0.0.7", record["remote_addr"])
	assert.Equal(t, "/projects/detalle", record["path"])
	assert.EqualValues(t, http.StatusForbidden, record["status"])
	assert.Equal(t, map[string]interface{}{"projectId": "p1"}, record["params"])
}

func TestAuditLoggerRequiresUser(t *testing.T) {
	buf := new(bytes.Buffer)
	audit := NewAuditLogger(buf)

	called := false
	handler := audit.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, called)
	assert.Zero(t, buf.Len())
}
