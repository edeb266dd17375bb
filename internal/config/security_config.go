package config

import "time"

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetMaxSessionAge() time.Duration {
	return GetEnvDuration("MAX_SESSION_AGE", 30*time.Minute)
}

func (Security) GetRememberMeSessionAge() time.Duration {
	return GetEnvDuration("REMEMBER_ME_SESSION_AGE", 30*24*time.Hour)
}

func (Security) GetEnableRateLimiting() bool {
	return GetEnvBool("RATE_LIMIT_ENABLED", true)
}

func (Security) GetRateLimitRPS() float64 {
	return GetEnvFloat("RATE_LIMIT_RPS", 5)
}

func (Security) GetRateLimitBurst() int {
	return GetEnvInt("RATE_LIMIT_BURST", 10)
}
