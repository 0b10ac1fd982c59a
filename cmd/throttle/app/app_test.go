// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package app

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopiesLinesInOrder(t *testing.T) {
	var out bytes.Buffer
	err := Run([]string{"--rate", "1000", "--unit", "second", "--burst", "10"}, strings.NewReader("a\nb\nc\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", out.String())
}

func TestEmptyInput(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Run(nil, strings.NewReader(""), &out))
	assert.Empty(t, out.String())
}

func TestInvalidFlags(t *testing.T) {
	tests := map[string][]string{
		"zero rate":    {"--rate", "0"},
		"bad unit":     {"--unit", "fortnight"},
		"bad burst":    {"--burst", "0"},
		"unknown flag": {"--bogus"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Run(args, strings.NewReader("a\n"), &bytes.Buffer{}))
		})
	}
}

func TestNamedThrottlerFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "throttlers.yaml")
	y := "throttlers:\n  fast:\n    rate: 1000\n    unit: second\n    burst: 5\n"
	require.NoError(t, ioutil.WriteFile(path, []byte(y), 0644))

	var out bytes.Buffer
	require.NoError(t, Run([]string{"--config", path, "--name", "fast"}, strings.NewReader("x\ny\n"), &out))
	assert.Equal(t, "x\ny\n", out.String())

	assert.Error(t, Run([]string{"--config", path, "--name", "slow"}, strings.NewReader("x\n"), &bytes.Buffer{}))
	assert.Error(t, Run([]string{"--config", path}, strings.NewReader("x\n"), &bytes.Buffer{}))
	assert.Error(t, Run([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--name", "fast"}, strings.NewReader("x\n"), &bytes.Buffer{}))
}

func TestServesMetrics(t *testing.T) {
	var out bytes.Buffer
	err := Run([]string{"--rate", "1000", "--burst", "10", "--metrics", "127.0.0.1:0"}, strings.NewReader("a\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "a\n", out.String())
}

func TestAdminNeedsConfig(t *testing.T) {
	err := Run([]string{"--admin", "127.0.0.1:0"}, strings.NewReader("a\n"), &bytes.Buffer{})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "throttlers.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("throttlers:\n  fast:\n    rate: 1000\n"), 0644))

	var out bytes.Buffer
	require.NoError(t, Run([]string{"--config", path, "--name", "fast", "--admin", "127.0.0.1:0"}, strings.NewReader("a\n"), &out))
	assert.Equal(t, "a\n", out.String())
}
