// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

// Package mysqlpersister stores versioned throttler configs in a MySQL table:
//
//	CREATE TABLE throttler_configs (
//	    ID BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    Version INT UNIQUE,
//	    Config BLOB);
//
// Every process polls the table for versions newer than the latest it has seen.
package mysqlpersister

import (
	"bytes"
	"database/sql"
	"io"
	"io/ioutil"
	"sort"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/agata-anastazja/throttler/config"
	"github.com/agata-anastazja/throttler/config/internal"
	"github.com/agata-anastazja/throttler/logging"
)

var ErrDuplicateConfig = errors.New("config with provided version number already exists")

const (
	TableName              = "throttler_configs"
	mysqlErrDuplicateEntry = 1062
)

type MysqlPersister struct {
	latestVersion int
	db            *sql.DB
	m             *sync.RWMutex

	notifier        *internal.Notifier
	shutdown        chan struct{}
	fetcherShutdown chan struct{}

	configs map[int][]byte
}

type configRow struct {
	Version int
	Config  []byte
}

func New(c Connector, pollingInterval time.Duration) (*MysqlPersister, error) {
	logging.Trace("Connecting to MySQL")
	db, err := c.Connect()
	if err != nil {
		return nil, err
	}
	logging.Trace("Connecting to MySQL: OK")

	logging.Trace("Verifying table exists")
	q, args, err := sq.Select("1").From(TableName).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}

	if _, err = db.Exec(q, args...); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "table %v does not exist", TableName)
	}
	logging.Trace("Verifying table exists: OK")

	mp := &MysqlPersister{
		db:              db,
		configs:         make(map[int][]byte),
		m:               &sync.RWMutex{},
		notifier:        internal.NewNotifier(),
		shutdown:        make(chan struct{}),
		fetcherShutdown: make(chan struct{}),
		latestVersion:   -1,
	}

	logging.Info("Pulling configs from MySQL")
	if _, err := mp.pullConfigs(); err != nil {
		db.Close()
		return nil, err
	}

	mp.m.RLock()
	v := mp.latestVersion
	mp.m.RUnlock()
	logging.Infof("Pulling configs from MySQL: OK; Latest Version: %v", v)

	mp.notifier.Notify()

	go mp.configFetcher(pollingInterval)

	return mp, nil
}

func (mp *MysqlPersister) configFetcher(pollingInterval time.Duration) {
	defer close(mp.fetcherShutdown)

	ticker := time.NewTicker(pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if newConf, err := mp.pullConfigs(); err != nil {
				logging.Warnf("Received an error trying to fetch config updates: %s", err)
			} else if newConf {
				logging.Debug("New config(s) found in MySQL")
				mp.notifier.Notify()
			}
		case <-mp.shutdown:
			logging.Debug("Received shutdown signal, shutting down mysql watcher")
			return
		}
	}
}

// pullConfigs fetches configs newer than the latest seen, and returns true if there were any.
func (mp *MysqlPersister) pullConfigs() (bool, error) {
	mp.m.RLock()
	v := mp.latestVersion
	mp.m.RUnlock()

	logging.Tracef("Fetching configs later than %v", v)
	q, args, err := sq.
		Select("Version", "Config").
		From(TableName).
		Where(sq.Gt{"Version": v}).
		OrderBy("Version ASC").ToSql()
	if err != nil {
		return false, err
	}

	rows, err := mp.db.Query(q, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	maxVersion := -1
	for rows.Next() {
		var r configRow
		if err := rows.Scan(&r.Version, &r.Config); err != nil {
			return false, err
		}

		if _, err := config.UnmarshalBytes(r.Config); err != nil {
			logging.Warnf("Could not unmarshal config version %v, error: %s", r.Version, err)
			continue
		}

		mp.m.Lock()
		mp.configs[r.Version] = r.Config
		mp.m.Unlock()

		maxVersion = r.Version
	}

	if err := rows.Err(); err != nil {
		return false, err
	}

	if maxVersion < 0 {
		logging.Tracef("No versions later than %v found", v)
		return false, nil
	}

	logging.Infof("Upgrading from version %v to %v", v, maxVersion)

	mp.m.Lock()
	mp.latestVersion = maxVersion
	mp.m.Unlock()

	return true, nil
}

// PersistAndNotify stores a marshalled config under its version. Watchers are notified by
// the poller, including this process's own.
func (mp *MysqlPersister) PersistAndNotify(marshalledConfig io.Reader) error {
	b, err := ioutil.ReadAll(marshalledConfig)
	if err != nil {
		return err
	}

	c, err := config.UnmarshalBytes(b)
	if err != nil {
		return err
	}

	logging.Infof("Persisting version %v", c.Version)
	q, args, err := sq.Insert(TableName).Columns("Version", "Config").Values(c.Version, b).ToSql()
	if err != nil {
		return err
	}

	if _, err = mp.db.Exec(q, args...); err != nil {
		if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == mysqlErrDuplicateEntry {
			return ErrDuplicateConfig
		}

		return err
	}

	logging.Infof("Persisting version %v: OK", c.Version)
	return nil
}

// ConfigChangedWatcher returns a channel that is notified whenever a new config is available.
func (mp *MysqlPersister) ConfigChangedWatcher() <-chan struct{} {
	return mp.notifier.Watcher
}

// ReadPersistedConfig provides the config with the highest version seen.
func (mp *MysqlPersister) ReadPersistedConfig() (io.Reader, error) {
	mp.m.RLock()
	defer mp.m.RUnlock()

	b, ok := mp.configs[mp.latestVersion]
	if !ok {
		return nil, errors.New("persister has no config")
	}

	return bytes.NewReader(b), nil
}

// ReadHistoricalConfigs returns every config seen, ordered by version.
func (mp *MysqlPersister) ReadHistoricalConfigs() ([]io.Reader, error) {
	mp.m.RLock()
	defer mp.m.RUnlock()

	versions := make([]int, 0, len(mp.configs))
	for k := range mp.configs {
		versions = append(versions, k)
	}

	sort.Ints(versions)

	configs := make([]io.Reader, len(versions))
	for i, v := range versions {
		configs[i] = bytes.NewReader(mp.configs[v])
	}

	return configs, nil
}

func (mp *MysqlPersister) Close() {
	logging.Debug("Shutting down MySQL persister")
	close(mp.shutdown)
	<-mp.fetcherShutdown

	close(mp.notifier.Watcher)
	if err := mp.db.Close(); err != nil {
		logging.Errorf("Could not terminate mysql connection: %v", err)
	} else {
		logging.Debug("Shutting down MySQL persister: OK")
	}
}

var _ config.ConfigPersister = &MysqlPersister{}
