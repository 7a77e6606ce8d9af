package gasrag_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/solracnyc/gasrag"
	"github.com/stretchr/testify/assert"
)

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := gasrag.Errorf(gasrag.ENOTFOUND, "document %q not found", "test")

	assert.Equal(t, gasrag.ENOTFOUND, gasrag.ErrorCode(err))
	assert.Equal(t, "document \"test\" not found", gasrag.ErrorMessage(err))
}

func TestErrorCode_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, gasrag.ErrorCode(nil))
}

func TestErrorMessage_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, gasrag.ErrorMessage(nil))
}

func TestErrorCode_UnwrapsOpError(t *testing.T) {
	t.Parallel()

	err := &gasrag.OpError{Op: "insert", Err: gasrag.Errorf(gasrag.EINVALID, "bad record")}

	assert.Equal(t, gasrag.EINVALID, gasrag.ErrorCode(err))
	assert.Equal(t, "bad record", gasrag.ErrorMessage(err))
	assert.Contains(t, err.Error(), "insert: ")
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"status 503", &gasrag.StatusError{StatusCode: 503}, true},
		{"status 429", &gasrag.StatusError{StatusCode: 429}, true},
		{"status 408", &gasrag.StatusError{StatusCode: 408}, true},
		{"status 401", &gasrag.StatusError{StatusCode: 401}, false},
		{"status 400", &gasrag.StatusError{StatusCode: 400}, false},
		{"status 429 quota exceeded", &gasrag.StatusError{StatusCode: 429, Message: "Quota exceeded for project"}, false},
		{"status 503 permission denied", &gasrag.StatusError{StatusCode: 503, Message: "permission denied for table gas_chunks"}, false},
		{"wrapped status expired token", fmt.Errorf("rpc: %w", &gasrag.StatusError{StatusCode: 500, Message: "JWT expired"}), false},
		{"wrapped status", fmt.Errorf("call: %w", &gasrag.StatusError{StatusCode: 502}), true},
		{"invalid code", gasrag.Errorf(gasrag.EINVALID, "bad"), false},
		{"circuit open", gasrag.Errorf(gasrag.EUNAVAILABLE, "open"), false},
		{"rate limit code", gasrag.Errorf(gasrag.ERATELIMIT, "slow down"), true},
		{"network message", errors.New("network unreachable"), true},
		{"cloudflare message", errors.New("Cloudflare error 520"), true},
		{"fatal message", errors.New("permission denied for table chunks"), false},
		{"dimension mismatch", errors.New("expected 768 dimensions, not 5"), false},
		{"unknown", errors.New("something odd"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, gasrag.IsRetryable(tt.err))
		})
	}
}

func TestIsRateLimit(t *testing.T) {
	t.Parallel()

	assert.True(t, gasrag.IsRateLimit(&gasrag.StatusError{StatusCode: 429}))
	assert.True(t, gasrag.IsRateLimit(errors.New("Error 429, Status: RESOURCE_EXHAUSTED")))
	assert.True(t, gasrag.IsRateLimit(gasrag.Errorf(gasrag.ERATELIMIT, "quota")))
	assert.False(t, gasrag.IsRateLimit(&gasrag.StatusError{StatusCode: 500}))
	assert.False(t, gasrag.IsRateLimit(nil))
}

func TestEmbeddingFailure_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := &gasrag.EmbeddingFailure{ChunkID: "abc", Attempts: 3, Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "abc")
	assert.Contains(t, err.Error(), "3 attempts")
}
