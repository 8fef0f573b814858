package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCodeError_UnwrapsUnderlyingError(t *testing.T) {
	base := errors.New("upstream boom")
	wrapped := &exitCodeError{code: 2, err: base}

	require.Equal(t, "upstream boom", wrapped.Error())
	require.ErrorIs(t, wrapped, base)
}

func TestResolveConfigPath_ReturnsExplicitPathUnchanged(t *testing.T) {
	path, err := resolveConfigPath("/tmp/explicit-config.yaml")

	require.NoError(t, err)
	require.Equal(t, "/tmp/explicit-config.yaml", path)
}
