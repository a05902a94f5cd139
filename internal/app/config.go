package app

import (
	"strings"
	"time"

	"github.com/meridianvc/dealflow-backend/internal/logger"
	"github.com/meridianvc/dealflow-backend/internal/utils"
)

type Config struct {
	JWTSecretKey   string
	AllowedOrigins []string
	TaskTimeout    time.Duration

	ChunkMaxSize     int
	ChunkOverlapSize int

	Environment string
	Version     string
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	origins := strings.Split(utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log), ",")
	var trimmed []string
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			trimmed = append(trimmed, o)
		}
	}
	taskTimeoutSeconds := utils.GetEnvAsInt("TASK_TIMEOUT_SECONDS", 120, log)
	return Config{
		JWTSecretKey:     jwtSecretKey,
		AllowedOrigins:   trimmed,
		TaskTimeout:      time.Duration(taskTimeoutSeconds) * time.Second,
		ChunkMaxSize:     utils.GetEnvAsInt("CHUNK_MAX_SIZE", 1000, log),
		ChunkOverlapSize: utils.GetEnvAsInt("CHUNK_OVERLAP_SIZE", 200, log),
		Environment:      utils.GetEnv("APP_ENV", "development", log),
		Version:          utils.GetEnv("APP_VERSION", "dev", log),
	}
}
