package app

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.OpsAddr != ":9090" {
		t.Fatalf("OpsAddr = %q", cfg.OpsAddr)
	}
	if cfg.PostgresDSN != "" || cfg.KafkaBrokers != "" || cfg.SnapshotPath != "" {
		t.Fatalf("default config must select the memory backend without kafka: %+v", cfg)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("COMANDA_HTTP_ADDR", ":18080")
	t.Setenv("COMANDA_OPS_ADDR", ":19090")
	t.Setenv("COMANDA_POSTGRES_DSN", "postgres://localhost/comanda")
	t.Setenv("COMANDA_KAFKA_BROKERS", "broker-1:9092,broker-2:9092")
	t.Setenv("COMANDA_CATALOG_PATH", "/etc/comanda/products.json")
	t.Setenv("COMANDA_SNAPSHOT_PATH", "/var/lib/comanda/state.json")

	cfg := ConfigFromEnv()
	if cfg.HTTPAddr != ":18080" || cfg.OpsAddr != ":19090" {
		t.Fatalf("addrs not overridden: %+v", cfg)
	}
	if cfg.PostgresDSN != "postgres://localhost/comanda" {
		t.Fatalf("PostgresDSN = %q", cfg.PostgresDSN)
	}
	if cfg.KafkaBrokers != "broker-1:9092,broker-2:9092" {
		t.Fatalf("KafkaBrokers = %q", cfg.KafkaBrokers)
	}
	if cfg.CatalogPath != "/etc/comanda/products.json" {
		t.Fatalf("CatalogPath = %q", cfg.CatalogPath)
	}
	if cfg.SnapshotPath != "/var/lib/comanda/state.json" {
		t.Fatalf("SnapshotPath = %q", cfg.SnapshotPath)
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("COMANDA_HTTP_ADDR", "")
	t.Setenv("COMANDA_OPS_ADDR", "")

	cfg := ConfigFromEnv()
	if cfg.HTTPAddr != ":8080" || cfg.OpsAddr != ":9090" {
		t.Fatalf("empty env must keep defaults: %+v", cfg)
	}
}
