package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ConfigYAML(t *testing.T) {
	path := filepath.Join("..", "..", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.Host == "" {
		t.Fatalf("expected database.host to be set")
	}
	if cfg.RabbitMQ.Port == 0 {
		t.Fatalf("expected rabbitmq.port to be set")
	}
	if cfg.Orders.TaxRate != 0.19 {
		t.Fatalf("expected orders.tax_rate 0.19, got %v", cfg.Orders.TaxRate)
	}
	if cfg.Payments.Timeout != 10*time.Second {
		t.Fatalf("expected payments.timeout 10s, got %v", cfg.Payments.Timeout)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults fill missing sections",
			body: "database:\n  host: db\n",
			check: func(t *testing.T, cfg *Config) {
				if cfg.Database.Host != "db" || cfg.Orders.TaxRate != 0.19 || cfg.Storage.Driver != "postgres" {
					t.Fatalf("unexpected config: %+v", cfg)
				}
			},
		},
		{
			name: "lists and quoted values",
			body: "kafka:\n  brokers: a:9092, b:9092\n  crm_topic: \"crm\"\nnotifications:\n  drivers: redis,none\n",
			check: func(t *testing.T, cfg *Config) {
				if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" || cfg.Kafka.CRMTopic != "crm" {
					t.Fatalf("unexpected kafka config: %+v", cfg.Kafka)
				}
				if !cfg.HasDriver("redis") || cfg.HasDriver("rabbitmq") {
					t.Fatalf("unexpected drivers: %v", cfg.Notifications.Drivers)
				}
			},
		},
		{name: "unknown section", body: "bogus:\n  key: value\n", wantErr: true},
		{name: "unknown key", body: "database:\n  nope: 1\n", wantErr: true},
		{name: "bad port", body: "database:\n  port: abc\n", wantErr: true},
		{name: "tax rate out of range", body: "orders:\n  tax_rate: 1.5\n", wantErr: true},
		{name: "unknown storage driver", body: "storage:\n  driver: mongo\n", wantErr: true},
		{name: "unknown notification driver", body: "notifications:\n  drivers: socketio\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && err == nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TAX_RATE", "0.1")
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := Load(writeConfig(t, "database:\n  password: plain\n"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Orders.TaxRate != 0.1 {
		t.Fatalf("expected TAX_RATE override, got %v", cfg.Orders.TaxRate)
	}
	if cfg.Database.Password != "secret" {
		t.Fatalf("expected DB_PASSWORD override, got %q", cfg.Database.Password)
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := Default()
	cfg.Database.Password = "pw"
	want := "postgres://restaurant_user:pw@localhost:5432/restaurant_db?sslmode=disable"
	if got := cfg.DatabaseURL(); got != want {
		t.Fatalf("DatabaseURL() = %q, want %q", got, want)
	}
}
