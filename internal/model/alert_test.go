package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSeverity(t *testing.T) {
	for _, sev := range Severities {
		parsed, err := ParseSeverity(string(sev))
		require.NoError(t, err)
		require.Equal(t, sev, parsed)
		require.True(t, parsed.Valid())
	}

	_, err := ParseSeverity("urgent")
	require.Error(t, err)
	require.False(t, Severity("urgent").Valid())
}
