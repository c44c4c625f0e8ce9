package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReconError_Error(t *testing.T) {
	err := NewMalformedRecord("analytics[3]", "param carries no value variant")
	require.Equal(t, "[warning] MALFORMED_RECORD: param carries no value variant (record: analytics[3])", err.Error())

	fatal := NewInvalidInput("match", "nil record sequence")
	require.Equal(t, "[fatal] INVALID_INPUT: match: nil record sequence", fatal.Error())
	require.False(t, fatal.Recoverable)
}

func TestIsCode_UnwrapsChains(t *testing.T) {
	base := NewStorageFailure("insert run summary", fmt.Errorf("connection reset"))
	wrapped := fmt.Errorf("step persist_results: %w", base)

	require.True(t, IsCode(wrapped, ErrCodeStorageFailure))
	require.False(t, IsCode(wrapped, ErrCodeInvalidInput))
	require.False(t, IsCode(fmt.Errorf("plain"), ErrCodeStorageFailure))
	require.False(t, IsCode(nil, ErrCodeStorageFailure))
}
