// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package config

import (
	"bytes"
	"io"
	"io/ioutil"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samuel/go-zookeeper/zk"

	"github.com/agata-anastazja/throttler/config/internal"
	"github.com/agata-anastazja/throttler/config/zkhelpers"
	"github.com/agata-anastazja/throttler/logging"
)

const (
	sessionTimeout = 3 * time.Second
	createRetries  = 3
	watchBackoff   = 100 * time.Millisecond
)

// ZkConfigPersister stores the latest config in a single ZooKeeper node and watches it, so
// every process sharing the node sees changes made by any of them.
type ZkConfigPersister struct {
	conn    *zk.Conn
	path    string
	config  []byte
	history [][]byte
	mu      sync.RWMutex
	*internal.Notifier
	stopper chan struct{}
	wg      sync.WaitGroup
}

func NewZkConfigPersister(path string, servers []string) (*ZkConfigPersister, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, err
	}

	conf, err := createAndGetConfig(conn, path)
	if err != nil {
		conn.Close()
		return nil, err
	}

	persister := &ZkConfigPersister{
		conn:     conn,
		path:     path,
		Notifier: internal.NewNotifier(),
		stopper:  make(chan struct{})}

	persister.setAndNotify(conf)
	// Notify that we're available for reading, even if the node is empty.
	persister.Notify()

	persister.wg.Add(1)
	go persister.zkEventListener()

	return persister, nil
}

// createAndGetConfig creates path and its parents if they do not exist, retrying in case
// another process races to create them.
func createAndGetConfig(conn *zk.Conn, path string) ([]byte, error) {
	var err error

	for i := 0; i < createRetries; i++ {
		var exists bool
		exists, _, err = conn.Exists(path)
		if err != nil {
			continue
		}

		if !exists {
			if err = zkhelpers.EnsurePath(conn, path); err != nil {
				continue
			}
		}

		var conf []byte
		conf, _, err = conn.Get(path)
		if err == nil {
			return conf, nil
		}

		logging.Warnf("Could not get config from %v, retrying in %v", path, watchBackoff)
		time.Sleep(watchBackoff)
	}

	if err == nil {
		err = errors.New("could not create and get path " + path)
	}

	return nil, errors.Wrapf(err, "zookeeper path %v", path)
}

// PersistAndNotify persists a marshalled configuration passed in. The notification comes from
// the ZooKeeper watch.
func (z *ZkConfigPersister) PersistAndNotify(marshalledConfig io.Reader) error {
	b, err := ioutil.ReadAll(marshalledConfig)
	if err != nil {
		return err
	}

	_, err = z.conn.Set(z.path, b, -1)
	return err
}

// ReadPersistedConfig provides a reader to a marshalled config previously persisted.
func (z *ZkConfigPersister) ReadPersistedConfig() (io.Reader, error) {
	z.mu.RLock()
	defer z.mu.RUnlock()

	return bytes.NewReader(z.config), nil
}

// ReadHistoricalConfigs returns the configs this persister has seen on its node, oldest first.
func (z *ZkConfigPersister) ReadHistoricalConfigs() ([]io.Reader, error) {
	z.mu.RLock()
	defer z.mu.RUnlock()

	configs := make([]io.Reader, len(z.history))
	for i, b := range z.history {
		configs[i] = bytes.NewReader(b)
	}

	return configs, nil
}

func (z *ZkConfigPersister) zkEventListener() {
	defer z.wg.Done()

	for {
		select {
		case <-z.stopper:
			return
		default:
		}

		config, _, ch, err := z.conn.GetW(z.path)
		if err != nil {
			logging.Warnf("Received error from zookeeper when fetching %s: %+v", z.path, err)
			select {
			case <-z.stopper:
				return
			case <-time.After(watchBackoff):
			}
			continue
		}

		z.setAndNotify(config)

		select {
		case <-z.stopper:
			return
		case event := <-ch:
			if event.Err != nil {
				logging.Warnf("Received error from zookeeper: %+v", event)
			}
		}
	}
}

// setAndNotify records config, notifying the watcher only if it differs from the last one
// seen.
func (z *ZkConfigPersister) setAndNotify(config []byte) {
	z.mu.Lock()
	changed := !bytes.Equal(z.config, config)
	z.config = config
	if changed && len(config) > 0 {
		z.history = append(z.history, config)
	}
	z.mu.Unlock()

	if changed {
		z.Notify()
	}
}

// ConfigChangedWatcher returns a channel that is notified whenever configuration changes are
// detected. Changes are coalesced so that a single notification may be emitted for multiple
// changes.
func (z *ZkConfigPersister) ConfigChangedWatcher() <-chan struct{} {
	return z.Watcher
}

func (z *ZkConfigPersister) Close() {
	close(z.stopper)
	z.conn.Close()
	z.wg.Wait()
	close(z.Watcher)
}
