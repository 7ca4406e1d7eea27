package restapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/emailer/pkg/respbuilder"
)

func TestLogBody(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		obj, str, err := logBody(nil)
		assert.Nil(t, obj)
		assert.Empty(t, str)
		assert.NoError(t, err)
	})

	t.Run("json", func(t *testing.T) {
		obj, str, err := logBody([]byte(`{"limit":5}`))
		assert.NoError(t, err)
		assert.Empty(t, str)
		assert.Equal(t, map[string]interface{}{"limit": float64(5)}, obj)
	})

	t.Run("plain text", func(t *testing.T) {
		obj, str, err := logBody([]byte("pong"))
		assert.Error(t, err)
		assert.Nil(t, obj)
		assert.Equal(t, "pong", str)
	})

	t.Run("large body truncated", func(t *testing.T) {
		body := `{"raw":"` + strings.Repeat("a@x.co\n", 2000) + `"}`
		obj, str, err := logBody([]byte(body))
		assert.NoError(t, err)
		assert.Nil(t, obj)
		assert.True(t, strings.HasPrefix(str, `{"raw":"a@x.co`))
		assert.Contains(t, str, "bytes)")
		assert.Less(t, len(str), len(body))
	})
}

func TestRequestLogger(t *testing.T) {
	var gotBody string
	var gotTrace string
	handler := requestLogger(func(r *http.Request) bool { return false }, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotTrace = respbuilder.MustExtract(r.Context()).AppTraceID

		w.Header().Set("X-Test", "1")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"data":{"state":"sending"}}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaign/start", strings.NewReader(`{"subject":"hi"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Test"))
	assert.JSONEq(t, `{"data":{"state":"sending"}}`, rec.Body.String())
	assert.Equal(t, `{"subject":"hi"}`, gotBody)
	assert.NotEmpty(t, gotTrace)
}
