package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     Kind
	}{
		{"fetch", NewFetchError("AmazonEC2/us-east-1", fmt.Errorf("dial tcp: timeout")), ErrFetch, KindFetch},
		{"parse", NewParseError("bad json", nil), ErrParse, KindParse},
		{"missing attribute", NewMissingAttributeError("products"), ErrParse, KindParse},
		{"too few", NewTooFewRecordsError(1, 10), ErrParse, KindParse},
		{"not found", NewPriceNotFoundError("compute|zz9.mega"), ErrNotFound, KindNotFound},
		{"dimension", NewInvalidDimensionError("k", "on-demand has no term"), ErrConfiguration, KindConfiguration},
		{"config", NewConfigurationError("utilization out of range"), ErrConfiguration, KindConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, stderrors.Is(wrapped, tt.sentinel))
			assert.Equal(t, tt.kind, KindOf(wrapped))
		})
	}
}

func TestSentinelsDoNotCrossMatch(t *testing.T) {
	err := NewPriceNotFoundError("x")
	assert.False(t, stderrors.Is(err, ErrFetch))
	assert.False(t, stderrors.Is(err, ErrConfiguration))
	assert.Equal(t, KindUnknown, KindOf(stderrors.New("plain")))
}

func TestRetryable(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewFetchError("offers", cause)

	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(NewParseError("bad", nil)))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "FETCH_FAILED")
	assert.Contains(t, err.Error(), "offers")
}
