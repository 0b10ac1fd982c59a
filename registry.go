// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package throttler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/agata-anastazja/throttler/config"
	"github.com/agata-anastazja/throttler/events"
	"github.com/agata-anastazja/throttler/lifecycle"
	"github.com/agata-anastazja/throttler/logging"
	"github.com/agata-anastazja/throttler/metrics"
	"github.com/agata-anastazja/throttler/stats"
)

// DefaultEventQueueBufSize is the event buffer used when listeners are attached without
// SetListener.
const DefaultEventQueueBufSize = 1024

// Registry holds named throttlers built from a persisted config, and rebuilds them when the
// config changes.
type Registry struct {
	currentStatus     lifecycle.Status
	persister         config.ConfigPersister
	opts              []Option
	listener          events.Listener
	statsListener     stats.Listener
	metrics           *metrics.Collector
	eventQueueBufSize int
	producer          *events.EventProducer
	cfg               *config.ThrottlersConfig
	throttlers        map[string]*Throttler
	sync.RWMutex      // Embedded mutex
}

// NewRegistry creates a Registry reading its config from persister. opts are applied to every
// throttler the registry builds, before the name, min sleep and poll interval from the config.
func NewRegistry(persister config.ConfigPersister, opts ...Option) *Registry {
	if persister == nil {
		panic("Need a config persister")
	}

	return &Registry{
		currentStatus:     lifecycle.New,
		persister:         persister,
		opts:              opts,
		eventQueueBufSize: DefaultEventQueueBufSize,
		throttlers:        make(map[string]*Throttler)}
}

func (r *Registry) String() string {
	r.RLock()
	defer r.RUnlock()
	return fmt.Sprintf("Registry with status %v and throttlers %v", r.currentStatus, r.namesLocked())
}

func (r *Registry) Status() lifecycle.Status {
	r.RLock()
	defer r.RUnlock()
	return r.currentStatus
}

// Start waits for the persister's first notification, builds the configured throttlers and
// then follows config changes until Stop.
func (r *Registry) Start() error {
	r.Lock()
	if r.currentStatus != lifecycle.New {
		r.Unlock()
		return errors.Errorf("cannot start a registry that is %v", r.currentStatus)
	}

	r.producer = r.newProducer()
	r.Unlock()

	watcher := r.persister.ConfigChangedWatcher()
	if _, ok := <-watcher; !ok {
		r.producer.Close()
		return errors.New("config persister closed before providing a config")
	}

	if err := r.readUpdatedConfig(); err != nil {
		r.producer.Close()
		return err
	}

	r.Lock()
	r.currentStatus = lifecycle.Started
	r.Unlock()

	go r.configListener(watcher)

	logging.Infof("Started %v", r)
	return nil
}

func (r *Registry) newProducer() *events.EventProducer {
	if r.listener == nil && r.statsListener == nil && r.metrics == nil {
		return events.NewNilProducer()
	}

	listener, statsListener, collector := r.listener, r.statsListener, r.metrics
	return events.RegisterListener(func(e events.Event) {
		if listener != nil {
			listener(e)
		}

		if statsListener != nil {
			statsListener.HandleEvent(e)
		}

		if collector != nil {
			collector.HandleEvent(e)
		}
	}, r.eventQueueBufSize)
}

// Stop stops every throttler and the delivery of events. The persister is left open.
func (r *Registry) Stop() {
	r.Lock()
	defer r.Unlock()

	if r.currentStatus == lifecycle.Stopped {
		return
	}

	r.currentStatus = lifecycle.Stopped
	for name, t := range r.throttlers {
		t.Stop()
		delete(r.throttlers, name)
	}

	r.producer.Close()
	logging.Info("Stopped throttler registry")
}

// Find returns the throttler configured under name.
func (r *Registry) Find(name string) (*Throttler, error) {
	r.RLock()
	defer r.RUnlock()

	if r.currentStatus != lifecycle.Started {
		return nil, newError(fmt.Sprintf("Registry is %v", r.currentStatus), ER_NOT_STARTED)
	}

	t, ok := r.throttlers[name]
	if !ok {
		return nil, newError("No such throttler "+name, ER_NO_THROTTLER)
	}

	return t, nil
}

// Names returns the names of the throttlers currently held, sorted.
func (r *Registry) Names() []string {
	r.RLock()
	defer r.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.throttlers))
	for name := range r.throttlers {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

func (r *Registry) checkNotStarted(what string) {
	if r.currentStatus != lifecycle.New {
		panic("Cannot set " + what + " after registry has started!")
	}
}

// SetListener registers a listener for events from every throttler in the registry.
func (r *Registry) SetListener(listener events.Listener, eventQueueBufSize int) {
	r.Lock()
	defer r.Unlock()
	r.checkNotStarted("listener")

	if eventQueueBufSize < 1 {
		panic("Event queue buffer size must be greater than 0")
	}

	r.listener = listener
	r.eventQueueBufSize = eventQueueBufSize
}

func (r *Registry) SetStatsListener(listener stats.Listener) {
	r.Lock()
	defer r.Unlock()
	r.checkNotStarted("stats listener")
	r.statsListener = listener
}

func (r *Registry) SetMetrics(c *metrics.Collector) {
	r.Lock()
	defer r.Unlock()
	r.checkNotStarted("metrics")
	r.metrics = c
}

func (r *Registry) configListener(ch <-chan struct{}) {
	for range ch {
		if r.Status() == lifecycle.Stopped {
			return
		}

		if err := r.readUpdatedConfig(); err != nil {
			logging.Errorf("Ignoring config update: %v", err)
		}
	}
}

func (r *Registry) readUpdatedConfig() error {
	configReader, err := r.persister.ReadPersistedConfig()
	if err != nil {
		return errors.Wrap(err, "error reading persisted config")
	}

	newConfig, err := config.Unmarshal(configReader)
	if err != nil {
		return errors.Wrap(err, "error reading marshalled config")
	}

	r.update(newConfig)
	return nil
}

// update swaps in newConfig. Throttlers whose config is unchanged are kept, so streams
// attached to them carry on; the rest are stopped.
func (r *Registry) update(newConfig *config.ThrottlersConfig) {
	r.Lock()
	defer r.Unlock()

	if r.currentStatus == lifecycle.Stopped {
		return
	}

	timingChanged := r.cfg == nil ||
		r.cfg.MinSleepMillis != newConfig.MinSleepMillis ||
		r.cfg.PollIntervalMillis != newConfig.PollIntervalMillis

	for name, t := range r.throttlers {
		var current *config.ThrottlerConfig
		if r.cfg != nil {
			current = r.cfg.Throttlers[name]
		}

		if timingChanged || config.DifferentThrottlerConfigs(current, newConfig.Throttlers[name]) {
			logging.Infof("Replacing throttler %v", name)
			t.Stop()
			delete(r.throttlers, name)
		}
	}

	for _, name := range newConfig.Names() {
		if _, exists := r.throttlers[name]; exists {
			continue
		}

		t, err := r.newThrottler(newConfig, newConfig.Throttlers[name])
		if err != nil {
			logging.Errorf("Cannot create throttler %v: %v", name, err)
			continue
		}

		r.throttlers[name] = t
	}

	r.cfg = newConfig
	logging.Infof("Applied config version %v", newConfig.Version)
}

func (r *Registry) newThrottler(cfg *config.ThrottlersConfig, tc *config.ThrottlerConfig) (*Throttler, error) {
	spec, err := tc.Spec()
	if err != nil {
		return nil, err
	}

	opts := append(append([]Option{}, r.opts...),
		WithName(tc.Name),
		WithMinSleep(cfg.MinSleep()),
		WithPollInterval(cfg.PollInterval()),
		WithNotifier(r.producer))

	return New(spec, opts...)
}

// Configs returns a copy of the config currently applied.
func (r *Registry) Configs() *config.ThrottlersConfig {
	r.RLock()
	defer r.RUnlock()
	return config.CloneConfig(r.cfg)
}

// updateConfig persists a modified copy of the current config under the next version. The
// registry picks it up through the persister's notification.
func (r *Registry) updateConfig(user string, updater func(*config.ThrottlersConfig) error) error {
	r.RLock()
	if r.currentStatus != lifecycle.Started {
		r.RUnlock()
		return newError(fmt.Sprintf("Registry is %v", r.currentStatus), ER_NOT_STARTED)
	}

	clonedCfg := config.CloneConfig(r.cfg)
	r.RUnlock()

	currentVersion := clonedCfg.Version
	if err := updater(clonedCfg); err != nil {
		return err
	}

	config.ApplyDefaults(clonedCfg)
	if err := clonedCfg.Validate(); err != nil {
		return err
	}

	clonedCfg.User = user
	clonedCfg.Date = time.Now().Unix()
	clonedCfg.Version = currentVersion + 1

	reader, err := config.Marshal(clonedCfg)
	if err != nil {
		return err
	}

	return r.persister.PersistAndNotify(reader)
}

// UpdateConfig replaces the whole config.
func (r *Registry) UpdateConfig(c *config.ThrottlersConfig, user string) error {
	return r.updateConfig(user, func(clonedCfg *config.ThrottlersConfig) error {
		*clonedCfg = *config.CloneConfig(c)
		return nil
	})
}

// AddThrottler adds a throttler to the config, or replaces the one with the same name.
func (r *Registry) AddThrottler(tc *config.ThrottlerConfig, user string) error {
	return r.updateConfig(user, func(clonedCfg *config.ThrottlersConfig) error {
		clone := *tc
		return config.AddThrottler(clonedCfg, &clone)
	})
}

func (r *Registry) RemoveThrottler(name, user string) error {
	return r.updateConfig(user, func(clonedCfg *config.ThrottlersConfig) error {
		return config.RemoveThrottler(clonedCfg, name)
	})
}

// HistoricalConfigs returns the configs the persister has stored, oldest first. Entries that
// cannot be read are skipped.
func (r *Registry) HistoricalConfigs() ([]*config.ThrottlersConfig, error) {
	readers, err := r.persister.ReadHistoricalConfigs()
	if err != nil {
		return nil, err
	}

	configs := make([]*config.ThrottlersConfig, 0, len(readers))
	for _, reader := range readers {
		c, err := config.Unmarshal(reader)
		if err != nil {
			logging.Warnf("Skipping unreadable historical config: %v", err)
			continue
		}
		configs = append(configs, c)
	}

	return configs, nil
}

func (r *Registry) TopForwarded(throttler string) []*stats.StreamScore {
	if r.statsListener == nil {
		return nil
	}

	return r.statsListener.TopForwarded(throttler)
}

func (r *Registry) TopRejected(throttler string) []*stats.StreamScore {
	if r.statsListener == nil {
		return nil
	}

	return r.statsListener.TopRejected(throttler)
}

func (r *Registry) StreamStats(throttler, stream string) *stats.StreamScores {
	if r.statsListener == nil {
		return nil
	}

	return r.statsListener.Get(throttler, stream)
}
