package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNew_FallsBackToInfo(t *testing.T) {
	log := New("chatty", "text", &bytes.Buffer{})
	require.Equal(t, logrus.InfoLevel, log.GetLevel())

	log = New("debug", "json", &bytes.Buffer{})
	require.Equal(t, logrus.DebugLevel, log.GetLevel())
	require.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestMiddleware_LogsRequestWithID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := New("info", "json", &buf)

	r := gin.New()
	r.Use(Middleware(log))
	r.GET("/api/things/:id", func(c *gin.Context) {
		c.Set("userID", "user-1")
		c.Status(http.StatusConflict)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/things/42", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "req-123", w.Header().Get(requestIDHeader))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "req-123", entry["request_id"])
	require.Equal(t, "/api/things/:id", entry["path"])
	require.EqualValues(t, http.StatusConflict, entry["status"])
	require.Equal(t, "user-1", entry["user_id"])
	require.Equal(t, "warning", entry["level"])
}
