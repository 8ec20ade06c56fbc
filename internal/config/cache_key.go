package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuestionSetKey returns the cache key for a pinned question set.
func (r *CacheKeyStruct) QuestionSetKey(cutoff int64, limit int) string {
	return fmt.Sprintf("questions:cutoff:%d:limit:%d", cutoff, limit)
}

// SessionMonitorChannel returns the Redis PubSub channel for one session's proctor alerts.
func (r *CacheKeyStruct) SessionMonitorChannel(sessionID string) string {
	return fmt.Sprintf("proctor:session:%s:monitor", sessionID)
}

// GlobalMonitorChannel is the Redis PubSub channel carrying every proctor alert.
func (r *CacheKeyStruct) GlobalMonitorChannel() string {
	return "proctor:monitor"
}

var CacheKey = NewCacheKeyStruct()
