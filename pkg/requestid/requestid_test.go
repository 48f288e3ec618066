package requestid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradesignal/backend/pkg/requestid"
)

func serve(t *testing.T, incoming string) (seen string, rec *httptest.ResponseRecorder) {
	t.Helper()
	h := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestid.GetFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set(requestid.Header, incoming)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return seen, rec
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("mints an id when none is supplied", func(t *testing.T) {
		t.Parallel()

		seen, rec := serve(t, "")
		require.NotEmpty(t, seen)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err)
		assert.Equal(t, seen, rec.Header().Get(requestid.Header))
	})

	t.Run("reuses a valid incoming id", func(t *testing.T) {
		t.Parallel()

		seen, rec := serve(t, "edge-7f3a_01")
		assert.Equal(t, "edge-7f3a_01", seen)
		assert.Equal(t, "edge-7f3a_01", rec.Header().Get(requestid.Header))
	})

	t.Run("replaces malformed ids", func(t *testing.T) {
		t.Parallel()

		for name, incoming := range map[string]string{
			"illegal characters": "abc def!",
			"too long":           strings.Repeat("a", 65),
		} {
			t.Run(name, func(t *testing.T) {
				t.Parallel()

				seen, _ := serve(t, incoming)
				require.NotEmpty(t, seen)
				assert.NotEqual(t, incoming, seen)
				_, err := uuid.Parse(seen)
				assert.NoError(t, err)
			})
		}
	})
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := requestid.SetToContext(context.Background(), "req-42")
	assert.Equal(t, "req-42", requestid.GetFromContext(ctx))
	assert.Empty(t, requestid.GetFromContext(context.Background()))
}

func TestLogExtractor(t *testing.T) {
	t.Parallel()

	extract := requestid.LogExtractor()

	attr, ok := extract(requestid.SetToContext(context.Background(), "req-42"))
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "req-42", attr.Value.String())

	_, ok = extract(context.Background())
	assert.False(t, ok)
}
