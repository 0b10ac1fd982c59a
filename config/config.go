// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

// Package config implements YAML configs for named throttlers, and the persisters that store
// them and announce changes.
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/ioutil"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/agata-anastazja/throttler/rate"
)

const (
	DefaultMinSleepMillis     = 10
	DefaultPollIntervalMillis = 1
	DefaultBurst              = 1
	DefaultUnit               = "second"
	initialVersion            = 0
)

// ErrInvalidConfig is returned, wrapped with detail, for configs that cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// ThrottlersConfig is the configuration of a set of named throttlers.
type ThrottlersConfig struct {
	Version            int                         `yaml:"version" json:"version"`
	User               string                      `yaml:"user,omitempty" json:"user,omitempty"`
	Date               int64                       `yaml:"date,omitempty" json:"date,omitempty"`
	MinSleepMillis     int64                       `yaml:"min_sleep_millis" json:"min_sleep_millis"`
	PollIntervalMillis int64                       `yaml:"poll_interval_millis" json:"poll_interval_millis"`
	Throttlers         map[string]*ThrottlerConfig `yaml:"throttlers" json:"throttlers"`
}

// ThrottlerConfig configures a single throttler: Rate messages per Unit, with bursts of up to
// Burst.
type ThrottlerConfig struct {
	Name  string  `yaml:"-" json:"name,omitempty"`
	Rate  float64 `yaml:"rate" json:"rate"`
	Unit  string  `yaml:"unit" json:"unit"`
	Burst int     `yaml:"burst" json:"burst"`
}

// Spec converts the config into a validated rate.Spec.
func (t *ThrottlerConfig) Spec() (rate.Spec, error) {
	u, err := rate.ParseUnit(t.Unit)
	if err != nil {
		return rate.Spec{}, err
	}

	s := rate.Spec{Rate: t.Rate, Unit: u, Burst: t.Burst}
	return s, s.Validate()
}

// MinSleep is the floor on refill intervals for every throttler in the config.
func (c *ThrottlersConfig) MinSleep() time.Duration {
	return time.Duration(c.MinSleepMillis) * time.Millisecond
}

// PollInterval is the gate pause after a rejection for every throttler in the config.
func (c *ThrottlersConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

// Names returns the throttler names in sorted order.
func (c *ThrottlersConfig) Names() []string {
	names := make([]string, 0, len(c.Throttlers))
	for n := range c.Throttlers {
		names = append(names, n)
	}

	sort.Strings(names)
	return names
}

// Validate checks every throttler in the config.
func (c *ThrottlersConfig) Validate() error {
	if c.MinSleepMillis <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "min_sleep_millis must be positive, got %v", c.MinSleepMillis)
	}

	if c.PollIntervalMillis < 0 {
		return errors.Wrapf(ErrInvalidConfig, "poll_interval_millis cannot be negative, got %v", c.PollIntervalMillis)
	}

	for _, name := range c.Names() {
		if _, err := c.Throttlers[name].Spec(); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "throttler %v: %v", name, err)
		}
	}

	return nil
}

func ApplyDefaults(c *ThrottlersConfig) {
	if c.MinSleepMillis == 0 {
		c.MinSleepMillis = DefaultMinSleepMillis
	}

	if c.PollIntervalMillis == 0 {
		c.PollIntervalMillis = DefaultPollIntervalMillis
	}

	if c.Throttlers == nil {
		c.Throttlers = make(map[string]*ThrottlerConfig)
	}

	for name, t := range c.Throttlers {
		if t == nil {
			t = &ThrottlerConfig{}
			c.Throttlers[name] = t
		}

		ApplyThrottlerDefaults(t)
		t.Name = name
	}
}

func ApplyThrottlerDefaults(t *ThrottlerConfig) {
	if t.Burst == 0 {
		t.Burst = DefaultBurst
	}

	if t.Unit == "" {
		t.Unit = DefaultUnit
	}
}

func NewDefaultConfig() *ThrottlersConfig {
	return &ThrottlersConfig{
		Version:            initialVersion,
		User:               "throttler",
		Date:               time.Now().Unix(),
		MinSleepMillis:     DefaultMinSleepMillis,
		PollIntervalMillis: DefaultPollIntervalMillis,
		Throttlers:         make(map[string]*ThrottlerConfig)}
}

func NewDefaultThrottlerConfig(name string) *ThrottlerConfig {
	return &ThrottlerConfig{
		Name:  name,
		Rate:  1,
		Unit:  DefaultUnit,
		Burst: DefaultBurst}
}

func AddThrottler(c *ThrottlersConfig, t *ThrottlerConfig) error {
	if t.Name == "" {
		return errors.Wrap(ErrInvalidConfig, "throttler name cannot be empty")
	}

	if c.Throttlers == nil {
		c.Throttlers = make(map[string]*ThrottlerConfig)
	}

	c.Throttlers[t.Name] = t
	return nil
}

func RemoveThrottler(c *ThrottlersConfig, name string) error {
	if c.Throttlers[name] == nil {
		return errors.Wrapf(ErrInvalidConfig, "no such throttler %v", name)
	}

	delete(c.Throttlers, name)
	return nil
}

// DifferentThrottlerConfigs tells you whether two throttler configs would build different
// throttlers.
func DifferentThrottlerConfigs(c1, c2 *ThrottlerConfig) bool {
	if c1 == nil && c2 == nil {
		return false
	}

	if c1 == nil || c2 == nil {
		return true
	}

	return c1.Rate != c2.Rate ||
		c1.Unit != c2.Unit ||
		c1.Burst != c2.Burst
}

func ReadConfigFromFile(filename string) (*ThrottlersConfig, error) {
	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %v", filename)
	}

	return UnmarshalBytes(b)
}

// Marshal renders a config as YAML.
func Marshal(c *ThrottlersConfig) (io.Reader, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(b), nil
}

// Unmarshal reads a YAML config, applies defaults and validates it.
func Unmarshal(r io.Reader) (*ThrottlersConfig, error) {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, err
	}

	return UnmarshalBytes(b)
}

func UnmarshalBytes(b []byte) (*ThrottlersConfig, error) {
	c := &ThrottlersConfig{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "unable to read YAML: %v", err)
	}

	ApplyDefaults(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// HashConfig identifies a marshalled config by its content.
func HashConfig(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// CloneConfig returns a deep copy of c.
func CloneConfig(c *ThrottlersConfig) *ThrottlersConfig {
	if c == nil {
		return nil
	}

	clone := *c
	clone.Throttlers = make(map[string]*ThrottlerConfig, len(c.Throttlers))
	for name, t := range c.Throttlers {
		if t == nil {
			clone.Throttlers[name] = nil
			continue
		}

		tc := *t
		clone.Throttlers[name] = &tc
	}

	return &clone
}
