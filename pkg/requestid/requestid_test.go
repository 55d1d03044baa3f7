package requestid_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelvault/reelvault/pkg/requestid"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestid.FromContext(r.Context())))
	})
	srv := requestid.Middleware(echo)

	t.Run("generates id when absent", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		id := rec.Header().Get(requestid.Header)
		require.NotEmpty(t, id)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.Equal(t, id, rec.Body.String(), "context carries the same id")
	})

	t.Run("reuses valid client id", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestid.Header, "client-supplied_42")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		assert.Equal(t, "client-supplied_42", rec.Header().Get(requestid.Header))
	})

	t.Run("replaces malformed client id", func(t *testing.T) {
		t.Parallel()

		for _, bad := range []string{"has spaces", strings.Repeat("x", 200), "semi;colon"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(requestid.Header, bad)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			assert.NotEqual(t, bad, rec.Header().Get(requestid.Header))
		}
	})
}

func TestFromContext_Missing(t *testing.T) {
	t.Parallel()

	assert.Empty(t, requestid.FromContext(t.Context()))
}
