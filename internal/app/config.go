package app

import "os"

// Config описывает настройки запуска приложения. Пустой PostgresDSN
// означает эфемерный бэкенд; пустой KafkaBrokers отключает публикацию
// событий.
type Config struct {
	HTTPAddr     string
	OpsAddr      string
	PostgresDSN  string
	KafkaBrokers string
	CatalogPath  string
	SnapshotPath string
}

// DefaultConfig возвращает базовые адреса и эфемерный бэкенд без снапшота.
func DefaultConfig() Config {
	return Config{
		HTTPAddr: ":8080",
		OpsAddr:  ":9090",
	}
}

// ConfigFromEnv строит конфигурацию из переменных окружения COMANDA_*.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("COMANDA_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("COMANDA_OPS_ADDR"); v != "" {
		cfg.OpsAddr = v
	}
	cfg.PostgresDSN = os.Getenv("COMANDA_POSTGRES_DSN")
	cfg.KafkaBrokers = os.Getenv("COMANDA_KAFKA_BROKERS")
	cfg.CatalogPath = os.Getenv("COMANDA_CATALOG_PATH")
	cfg.SnapshotPath = os.Getenv("COMANDA_SNAPSHOT_PATH")
	return cfg
}
