package config

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Storage struct{}

var _ StorageConfig = Storage{}

// GetSessionStore selects the login session backend: "memory" or "redis"
func (Storage) GetSessionStore() string {
	return GetEnv("SESSION_STORE", SessionStoreMemory)
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Storage) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}
