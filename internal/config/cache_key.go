package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key holding the active login JTI of a user
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// SessionAnswersKey returns the cache key of the buffered answer snapshot of an exam session
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionSeqKey returns the counter ordering buffered answer snapshots of an exam session
func (r *CacheKeyStruct) SessionSeqKey(sessionID string) string {
	return fmt.Sprintf("session:%s:seq", sessionID)
}

// SessionControlChannel returns the Redis PubSub channel used to hand a live session to a new connection
func (r *CacheKeyStruct) SessionControlChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:control", sessionID)
}

// LoginAttemptsKey returns the rate limit counter key of a client IP
func (r *CacheKeyStruct) LoginAttemptsKey(ip string) string {
	return fmt.Sprintf("ratelimit:login:%s", ip)
}

var CacheKey = NewCacheKeyStruct()
