package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserLoginKey returns the cache key for a user's single-device login session.
func (r *CacheKeyStruct) UserLoginKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// PasswordResetOTPKey returns the cache key holding a user's password reset code.
func (r *CacheKeyStruct) PasswordResetOTPKey(email string) string {
	return fmt.Sprintf("otp:reset:%s", email)
}

// QuizPayloadKey returns the cache key for a quiz's student-facing payload.
func (r *CacheKeyStruct) QuizPayloadKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:payload", quizID)
}

var CacheKey = NewCacheKeyStruct()
