// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package config

import (
	"bytes"
	"io"
	"io/ioutil"
	"sync"

	"github.com/agata-anastazja/throttler/config/internal"
)

// MemoryConfigPersister keeps configs in memory. It is useful for tests, and for processes
// configured entirely from flags.
type MemoryConfigPersister struct {
	current []byte
	history [][]byte
	*internal.Notifier
	*sync.RWMutex
}

func NewMemoryConfigPersister() *MemoryConfigPersister {
	p := &MemoryConfigPersister{
		Notifier: internal.NewNotifier(),
		RWMutex:  &sync.RWMutex{}}

	p.Notify()
	return p
}

// PersistAndNotify persists a marshalled configuration passed in.
func (m *MemoryConfigPersister) PersistAndNotify(marshalledConfig io.Reader) error {
	b, err := ioutil.ReadAll(marshalledConfig)
	if err != nil {
		return err
	}

	m.Lock()
	defer m.Unlock()

	m.current = b
	m.history = append(m.history, b)

	// ... and notify
	m.Notify()

	return nil
}

// ReadPersistedConfig provides a reader to a marshalled config previously persisted. Before
// anything is persisted, the reader is empty.
func (m *MemoryConfigPersister) ReadPersistedConfig() (io.Reader, error) {
	m.RLock()
	defer m.RUnlock()

	return bytes.NewReader(m.current), nil
}

// ReadHistoricalConfigs returns an array of previously persisted configs
func (m *MemoryConfigPersister) ReadHistoricalConfigs() ([]io.Reader, error) {
	m.RLock()
	defer m.RUnlock()

	configs := make([]io.Reader, len(m.history))
	for i, b := range m.history {
		configs[i] = bytes.NewReader(b)
	}

	return configs, nil
}

// ConfigChangedWatcher returns a channel that is notified whenever configuration changes are
// detected. Changes are coalesced so that a single notification may be emitted for multiple
// changes.
func (m *MemoryConfigPersister) ConfigChangedWatcher() <-chan struct{} {
	return m.Notifier.Watcher
}

// Close closes the notification channel.
func (m *MemoryConfigPersister) Close() {
	close(m.Notifier.Watcher)
}
