package integration

import (
	"time"

	"github.com/VoidMesh/txlab/internal/config"
)

func dbConfig(url string) config.DatabaseConfig {
	return config.DatabaseConfig{URL: url, ConnectTimeout: time.Second}
}
