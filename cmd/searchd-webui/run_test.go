package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsLoopback(t *testing.T) {
	cases := []struct {
		host string
		want bool
	}{
		{"127.0.0.1", true},
		{"localhost", true},
		{"::1", true},
		{"0.0.0.0", false},
		{"192.168.1.5", false},
		{"example.com", false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, isLoopback(tc.host), tc.host)
	}
}

func TestRunWebUI_RefusesNonLoopbackWithoutAllowPublic(t *testing.T) {
	err := runWebUI("", "0.0.0.0", 8788, false)

	require.Error(t, err)
	require.Contains(t, err.Error(), "allow-public")
}

func TestResolveConfigPath_ReturnsExplicitPathUnchanged(t *testing.T) {
	path, err := resolveConfigPath("/tmp/explicit-config.yaml")

	require.NoError(t, err)
	require.Equal(t, "/tmp/explicit-config.yaml", path)
}
