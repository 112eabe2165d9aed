package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// PublishedKey returns the store key of the published exam definition
func (r *CacheKeyStruct) PublishedKey() string {
	return "published"
}

// SettingsKey returns the store key of the publish settings
func (r *CacheKeyStruct) SettingsKey() string {
	return "settings"
}

// SubmitsKey returns the store key of the submissions collection
func (r *CacheKeyStruct) SubmitsKey() string {
	return "submits"
}

// DraftKey returns the store key of a student's draft for an exam
func (r *CacheKeyStruct) DraftKey(examID, userID string) string {
	return fmt.Sprintf("draft:%s:%s", examID, userID)
}

// ExamMonitorChannel returns the PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

// LoginAttemptsKey returns the rate-limit bucket of a client IP
func (r *CacheKeyStruct) LoginAttemptsKey(ip string) string {
	return fmt.Sprintf("ratelimit:login:%s", ip)
}

var CacheKey = NewCacheKeyStruct()
