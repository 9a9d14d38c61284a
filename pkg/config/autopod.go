package config

import "time"

// AutopodConfig holds runtime configuration for the autopod service.
type AutopodConfig struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	DockerHost         string
	Workdir            string
	GitTimeout         time.Duration
	BuildTimeout       time.Duration
	PreferredPort      int
	LogTailLines       int
	SyncInterval       time.Duration
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadAutopodConfig constructs an AutopodConfig from environment variables.
func LoadAutopodConfig() AutopodConfig {
	return AutopodConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("AUTOPOD_ADDR", ":8080"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://autopod:autopod@db:5432/autopod?sslmode=disable"),
		MigrationsDir:      GetString("MIGRATIONS_DIR", "migrations"),
		DockerHost:         GetString("DOCKER_HOST", "unix:///var/run/docker.sock"),
		Workdir:            GetString("AUTOPOD_WORKDIR", "/tmp/autopod"),
		GitTimeout:         time.Duration(GetInt("GIT_TIMEOUT_SECONDS", 120)) * time.Second,
		BuildTimeout:       time.Duration(GetInt("BUILD_TIMEOUT_SECONDS", 600)) * time.Second,
		PreferredPort:      GetInt("DEPLOY_PREFERRED_PORT", 8081),
		LogTailLines:       GetInt("SYNC_LOG_TAIL_LINES", 50),
		SyncInterval:       time.Duration(GetInt("SYNC_INTERVAL_SECONDS", 30)) * time.Second,
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
