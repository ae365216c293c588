package database

import (
	"testing"
	"time"

	"github.com/THEROER/DoubleLife/internal/infra/config"
)

func TestPoolConfigEscapesCredentialsAndSetsSearchPath(t *testing.T) {
	cfg := config.PostgresSettings{
		Host:            "db.internal",
		Port:            5433,
		User:            "doublelife",
		Password:        "p@ss:w/rd?#",
		Database:        "minecraft",
		SSLMode:         "disable",
		MaxConns:        8,
		MaxConnIdleTime: time.Minute,
	}

	pc, err := PoolConfig(cfg)
	if err != nil {
		t.Fatalf("PoolConfig returned error: %v", err)
	}
	cc := pc.ConnConfig
	if cc.Host != "db.internal" || cc.Port != 5433 || cc.Database != "minecraft" {
		t.Fatalf("unexpected target %s:%d/%s", cc.Host, cc.Port, cc.Database)
	}
	if cc.User != "doublelife" || cc.Password != "p@ss:w/rd?#" {
		t.Fatalf("credentials not preserved: %q / %q", cc.User, cc.Password)
	}
	if got := cc.RuntimeParams["search_path"]; got != "doublelife,public" {
		t.Fatalf("unexpected search_path %q", got)
	}
	if got := cc.RuntimeParams["application_name"]; got != "doublelife" {
		t.Fatalf("unexpected application_name %q", got)
	}
	if pc.MaxConns != 8 || pc.MaxConnIdleTime != time.Minute {
		t.Fatalf("pool limits not applied: max=%d idle=%s", pc.MaxConns, pc.MaxConnIdleTime)
	}
}

func TestPoolConfigRejectsUnknownSSLMode(t *testing.T) {
	_, err := PoolConfig(config.PostgresSettings{Host: "localhost", Port: 5432, Database: "x", SSLMode: "sometimes"})
	if err == nil {
		t.Fatal("expected an error for an invalid sslmode")
	}
}
