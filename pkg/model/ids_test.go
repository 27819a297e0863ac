package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewIdsAreUniqueAndNonEmpty(t *testing.T) {
	require.NotEmpty(t, NewEvidenceId())
	require.NotEmpty(t, NewVerificationId())
	require.NotEmpty(t, NewCheckpointId())
	require.NotEmpty(t, NewToolCallId())

	require.NotEqual(t, NewEvidenceId(), NewEvidenceId())
	require.NotEqual(t, NewToolCallId(), NewToolCallId())
}
