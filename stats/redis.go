// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package stats

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/redis.v5"

	"github.com/agata-anastazja/throttler/events"
	"github.com/agata-anastazja/throttler/logging"
)

type redisListener struct {
	client *redis.Client
}

// NewRedisStatsListener creates a redis-backed stats listener with the passed in
// redis.Options. Scores are kept in sorted sets that expire at the end of the current hour.
func NewRedisStatsListener(redisOpts *redis.Options) (Listener, error) {
	client := redis.NewClient(redisOpts)
	if _, err := client.Ping().Result(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "cannot connect to Redis at %v", redisOpts.Addr)
	}

	return &redisListener{client}, nil
}

func (l *redisListener) redisTopList(key string) []*StreamScore {
	results, err := l.client.ZRevRangeWithScores(key, 0, TopN-1).Result()
	if err != nil && err != redis.Nil {
		logging.Warnf("RedisStatsListener.TopList error (%s) %v", key, err)
		return []*StreamScore{}
	}

	arr := make([]*StreamScore, len(results))
	for i, item := range results {
		arr[i] = &StreamScore{fmt.Sprint(item.Member), int64(item.Score)}
	}

	return arr
}

func statsKey(key, throttler string) string {
	return fmt.Sprintf("stats:%s:%s", throttler, key)
}

// TopForwarded returns the TopN streams of a throttler with the most forwarded messages
// within the current bucketed hour.
func (l *redisListener) TopForwarded(throttler string) []*StreamScore {
	return l.redisTopList(statsKey("forwarded", throttler))
}

// TopRejected returns the TopN streams of a throttler with the most rejections within the
// current bucketed hour.
func (l *redisListener) TopRejected(throttler string) []*StreamScore {
	return l.redisTopList(statsKey("rejected", throttler))
}

func (l *redisListener) score(key, throttler, stream string) int64 {
	value, err := l.client.ZScore(statsKey(key, throttler), stream).Result()
	if err != nil {
		if err != redis.Nil {
			logging.Warnf("RedisStatsListener.Get error (%s, %s) %v", throttler, stream, err)
		}
		return 0
	}

	return int64(value)
}

func (l *redisListener) Get(throttler, stream string) *StreamScores {
	return &StreamScores{
		Forwarded: l.score("forwarded", throttler, stream),
		Rejected:  l.score("rejected", throttler, stream)}
}

func nearestHour() time.Time {
	return time.Now().Add(time.Hour).Truncate(time.Hour)
}

func (l *redisListener) HandleEvent(event events.Event) {
	key, n, ok := scoreKey(event)
	if !ok {
		return
	}

	setKey := statsKey(key, event.Throttler())
	stream := event.Stream()

	var incr *redis.FloatCmd
	_, err := l.client.Pipelined(func(pipe *redis.Pipeline) error {
		incr = pipe.ZIncrBy(setKey, float64(n), stream)
		pipe.ExpireAt(setKey, nearestHour())
		return nil
	})

	if err != nil || incr.Err() != nil {
		logging.Warnf("RedisStatsListener.HandleEvent error (%s, %s, %d) %v, %v",
			setKey, stream, n, err, incr.Err())
	}
}
