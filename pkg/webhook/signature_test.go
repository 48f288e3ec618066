package webhook_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradesignal/backend/pkg/webhook"
)

func TestSignPayload(t *testing.T) {
	t.Parallel()

	t.Run("produces verifiable signature", func(t *testing.T) {
		t.Parallel()
		payload := []byte(`{"transactionId":"TS-1712000000-a1b2c3","resultCode":"000"}`)

		sig, err := webhook.SignPayload("secret", payload)
		require.NoError(t, err)
		assert.NotEmpty(t, sig.Signature)
		assert.NotEmpty(t, sig.ID)
		assert.InDelta(t, time.Now().Unix(), sig.Timestamp, 2)

		assert.NoError(t, webhook.VerifySignature("secret", payload, sig, time.Minute))
	})

	t.Run("requires secret", func(t *testing.T) {
		t.Parallel()
		_, err := webhook.SignPayload("", []byte("payload"))
		assert.ErrorIs(t, err, webhook.ErrInvalidConfiguration)
	})

	t.Run("requires payload", func(t *testing.T) {
		t.Parallel()
		_, err := webhook.SignPayload("secret", nil)
		assert.ErrorIs(t, err, webhook.ErrInvalidPayload)
	})
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"resultCode":"000"}`)

	t.Run("rejects tampered payload", func(t *testing.T) {
		t.Parallel()
		sig, err := webhook.SignPayload("secret", payload)
		require.NoError(t, err)

		err = webhook.VerifySignature("secret", []byte(`{"resultCode":"001"}`), sig, time.Minute)
		assert.ErrorIs(t, err, webhook.ErrSignatureMismatch)
	})

	t.Run("rejects wrong secret", func(t *testing.T) {
		t.Parallel()
		sig, err := webhook.SignPayload("secret", payload)
		require.NoError(t, err)

		err = webhook.VerifySignature("other-secret", payload, sig, time.Minute)
		assert.ErrorIs(t, err, webhook.ErrSignatureMismatch)
	})

	t.Run("rejects expired timestamp", func(t *testing.T) {
		t.Parallel()
		sig, err := webhook.SignPayload("secret", payload)
		require.NoError(t, err)
		sig.Timestamp = time.Now().Add(-10 * time.Minute).Unix()

		err = webhook.VerifySignature("secret", payload, sig, 5*time.Minute)
		assert.ErrorIs(t, err, webhook.ErrSignatureMismatch)
	})

	t.Run("rejects future timestamp", func(t *testing.T) {
		t.Parallel()
		sig, err := webhook.SignPayload("secret", payload)
		require.NoError(t, err)
		sig.Timestamp = time.Now().Add(10 * time.Minute).Unix()

		err = webhook.VerifySignature("secret", payload, sig, 5*time.Minute)
		assert.ErrorIs(t, err, webhook.ErrSignatureMismatch)
	})

	t.Run("zero max age skips the window check", func(t *testing.T) {
		t.Parallel()
		sig, err := webhook.SignPayload("secret", payload)
		require.NoError(t, err)

		// Re-sign with an old timestamp manually.
		old := time.Now().Add(-24 * time.Hour).Unix()
		resigned := resign(t, "secret", payload, old)
		sig.Timestamp = old
		sig.Signature = resigned

		assert.NoError(t, webhook.VerifySignature("secret", payload, sig, 0))
	})
}

func TestExtractSignatureHeaders(t *testing.T) {
	t.Parallel()

	t.Run("reads from http.Header", func(t *testing.T) {
		t.Parallel()
		h := http.Header{}
		h.Set("X-Webhook-Signature", "abc123")
		h.Set("X-Webhook-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
		h.Set("X-Webhook-ID", "evt_1")

		sig, err := webhook.ExtractSignatureHeaders(h.Get)
		require.NoError(t, err)
		assert.Equal(t, "abc123", sig.Signature)
		assert.Equal(t, "evt_1", sig.ID)
		assert.NotZero(t, sig.Timestamp)
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		h := http.Header{}
		h.Set("X-Webhook-Timestamp", "1712000000")

		_, err := webhook.ExtractSignatureHeaders(h.Get)
		assert.ErrorIs(t, err, webhook.ErrSignatureMismatch)
	})

	t.Run("invalid timestamp", func(t *testing.T) {
		t.Parallel()
		h := http.Header{}
		h.Set("X-Webhook-Signature", "abc123")
		h.Set("X-Webhook-Timestamp", "not-a-number")

		_, err := webhook.ExtractSignatureHeaders(h.Get)
		assert.ErrorIs(t, err, webhook.ErrSignatureMismatch)
	})
}

// resign computes the signature for a payload at an arbitrary timestamp
// so tests can fabricate aged signatures. Mirrors the production scheme:
// HMAC-SHA256 over "<timestamp>.<payload>".
func resign(t *testing.T, secret string, payload []byte, ts int64) string {
	t.Helper()
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.%s", ts, payload)
	return hex.EncodeToString(h.Sum(nil))
}
