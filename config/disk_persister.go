// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package config

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/agata-anastazja/throttler/config/internal"
	"github.com/agata-anastazja/throttler/logging"
)

// DiskConfigPersister is a ConfigPersister that saves configs to the local filesystem. Every
// config is written to <location>-<hash>, and location is a symlink to the latest one.
type DiskConfigPersister struct {
	location string
	*internal.Notifier
}

// NewDiskConfigPersister creates a new DiskConfigPersister
func NewDiskConfigPersister(location string) (*DiskConfigPersister, error) {
	info, err := os.Stat(location)
	// Nonexistent files in an existing directory are allowed.
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	if err == nil && info.IsDir() {
		return nil, errors.Errorf("%v is a directory", location)
	}

	d := &DiskConfigPersister{location, internal.NewNotifier()}

	// Notify that we're available for reading
	d.Notify()

	return d, nil
}

func writeFile(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	if _, err = f.Write(b); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// PersistAndNotify persists a marshalled configuration passed in.
func (d *DiskConfigPersister) PersistAndNotify(marshalledConfig io.Reader) error {
	b, err := ioutil.ReadAll(marshalledConfig)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("%s-%s", d.location, HashConfig(b))
	if err = writeFile(path, b); err != nil {
		return errors.Wrapf(err, "unable to write %v", path)
	}

	if _, err := os.Lstat(d.location); err == nil {
		if err = os.Remove(d.location); err != nil {
			return err
		}
	}

	if err = os.Symlink(path, d.location); err != nil {
		return err
	}

	logging.Debugf("Persisted config to %v", path)

	// ... and notify
	d.Notify()

	return nil
}

// ReadPersistedConfig provides a reader to a marshalled config previously persisted.
func (d *DiskConfigPersister) ReadPersistedConfig() (io.Reader, error) {
	b, err := ioutil.ReadFile(d.location)
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(b), nil
}

// ReadHistoricalConfigs returns an array of previously persisted configs, oldest first.
func (d *DiskConfigPersister) ReadHistoricalConfigs() ([]io.Reader, error) {
	files, err := filepath.Glob(fmt.Sprintf("%s-*", d.location))
	if err != nil {
		return nil, err
	}

	modTimes := make(map[string]int64, len(files))
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			return nil, err
		}
		modTimes[file] = info.ModTime().UnixNano()
	}

	sort.SliceStable(files, func(i, j int) bool {
		return modTimes[files[i]] < modTimes[files[j]]
	})

	configs := make([]io.Reader, len(files))
	for i, file := range files {
		b, err := ioutil.ReadFile(file)
		if err != nil {
			return nil, err
		}

		configs[i] = bytes.NewReader(b)
	}

	return configs, nil
}

// ConfigChangedWatcher returns a channel that is notified whenever configuration changes are
// detected. Changes are coalesced so that a single notification may be emitted for multiple
// changes.
func (d *DiskConfigPersister) ConfigChangedWatcher() <-chan struct{} {
	return d.Watcher
}

func (d *DiskConfigPersister) Close() {
	close(d.Watcher)
}
