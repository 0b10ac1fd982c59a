// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// persisterTest runs the behaviour every ConfigPersister shares.
func persisterTest(t *testing.T, persister ConfigPersister) {
	select {
	case <-persister.ConfigChangedWatcher():
		// This is good.
	default:
		t.Fatal("Config channel should not be empty!")
	}

	s := NewDefaultConfig()
	s.Version = 92
	require.NoError(t, AddThrottler(s, &ThrottlerConfig{Name: "xyz", Rate: 300, Unit: "minute", Burst: 5}))

	r, err := Marshal(s)
	require.NoError(t, err)
	require.NoError(t, persister.PersistAndNotify(r))

	<-persister.ConfigChangedWatcher()

	r, err = persister.ReadPersistedConfig()
	require.NoError(t, err)
	unmarshalled, err := Unmarshal(r)
	require.NoError(t, err)
	assert.Equal(t, s, unmarshalled)

	cfgs, err := persister.ReadHistoricalConfigs()
	require.NoError(t, err)
	require.NotEmpty(t, cfgs)

	unmarshalled, err = Unmarshal(cfgs[len(cfgs)-1])
	require.NoError(t, err)
	assert.Equal(t, s, unmarshalled)
}

func TestMemoryPersistence(t *testing.T) {
	persister := NewMemoryConfigPersister()
	defer persister.Close()

	r, err := persister.ReadPersistedConfig()
	require.NoError(t, err)
	b, err := ioutil.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, b)

	persisterTest(t, persister)
}

func TestDiskPersistence(t *testing.T) {
	location := filepath.Join(t.TempDir(), "throttlers.yaml")
	persister, err := NewDiskConfigPersister(location)
	require.NoError(t, err)
	defer persister.Close()

	persisterTest(t, persister)

	// A second config adds a file and moves the symlink.
	cfg := NewDefaultConfig()
	cfg.Version = 93
	r, err := Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, persister.PersistAndNotify(r))

	cfgs, err := persister.ReadHistoricalConfigs()
	require.NoError(t, err)
	assert.Len(t, cfgs, 2)

	r, err = persister.ReadPersistedConfig()
	require.NoError(t, err)
	latest, err := Unmarshal(r)
	require.NoError(t, err)
	assert.Equal(t, 93, latest.Version)
}

func TestDiskPersisterRejectsDirectory(t *testing.T) {
	_, err := NewDiskConfigPersister(t.TempDir())
	assert.Error(t, err)
}
