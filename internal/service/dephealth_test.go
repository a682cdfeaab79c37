package service

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
)

func TestHealthByPrefix(t *testing.T) {
	tests := []struct {
		name   string
		health map[string]bool
		want   bool
	}{
		{"нет записей", map[string]bool{}, false},
		{"доступна", map[string]bool{"postgresql:db:5432": true}, true},
		{"недоступна", map[string]bool{"postgresql:db:5432": false}, false},
		{"точное имя", map[string]bool{"postgresql": true}, true},
		{"одна из двух недоступна", map[string]bool{"postgresql:a:5432": true, "postgresql:b:5432": false}, false},
		{"другая зависимость", map[string]bool{"postgresql-replica:db:5432": true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := healthByPrefix(tt.health, postgresDependency); got != tt.want {
				t.Errorf("healthByPrefix(%v) = %v, ожидалось %v", tt.health, got, tt.want)
			}
		})
	}
}

func TestNewDephealthService(t *testing.T) {
	const url = "postgres://ce:ce@localhost:5432/content_engine?sslmode=disable"
	connCfg, err := pgx.ParseConfig(url)
	if err != nil {
		t.Fatalf("ParseConfig() вернул ошибку: %v", err)
	}
	db := stdlib.OpenDB(*connCfg)
	defer db.Close()

	ds, err := NewDephealthServiceWithRegisterer(
		"content-engine-test", "content-engine", db, url,
		5*time.Second, testLogger(), prometheus.NewRegistry(),
	)
	if err != nil {
		t.Fatalf("NewDephealthServiceWithRegisterer() вернул ошибку: %v", err)
	}
	if ds.PostgresHealthy() {
		t.Error("до первой проверки PostgreSQL не должен считаться доступным")
	}
}
