package persist

import (
	"testing"
	"time"

	"github.com/tetrarogue/sim/internal/config"
)

func TestPoolConfigFromDatabaseSection(t *testing.T) {
	cfg := config.Default().Database
	cfg.MaxOpenConns = 2
	cfg.MaxIdleConns = 5
	cfg.StatementTimeout = 1500 * time.Millisecond

	pc, err := poolConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if pc.MaxConns != 2 || pc.MinConns != 2 {
		t.Errorf("conns = %d/%d, want 2/2", pc.MaxConns, pc.MinConns)
	}
	if pc.MaxConnLifetime != 30*time.Minute {
		t.Errorf("lifetime = %v", pc.MaxConnLifetime)
	}
	params := pc.ConnConfig.RuntimeParams
	if params["application_name"] != "tetrarogue" || params["statement_timeout"] != "1500" {
		t.Errorf("runtime params = %v", params)
	}
	if pc.ConnConfig.Database != "tetrarogue" {
		t.Errorf("database = %q", pc.ConnConfig.Database)
	}
}

func TestPoolConfigRejectsBadDSN(t *testing.T) {
	cfg := config.Default().Database
	cfg.DSN = "postgres://bad host:port"
	if _, err := poolConfig(cfg); err == nil {
		t.Error("malformed dsn accepted")
	}
}
