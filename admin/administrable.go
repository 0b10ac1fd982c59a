// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package admin

import (
	"github.com/agata-anastazja/throttler/config"
	"github.com/agata-anastazja/throttler/stats"
)

// Administrable defines something that can be administered via this package.
type Administrable interface {
	Configs() *config.ThrottlersConfig
	HistoricalConfigs() ([]*config.ThrottlersConfig, error)

	UpdateConfig(*config.ThrottlersConfig, string) error
	AddThrottler(*config.ThrottlerConfig, string) error
	RemoveThrottler(string, string) error

	TopForwarded(string) []*stats.StreamScore
	TopRejected(string) []*stats.StreamScore
	StreamStats(string, string) *stats.StreamScores
}
