package dbclient

import (
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"sfetl/internal/etl"
)

// buildPostgresDSN constructs a Postgres connection string from the target block.
func buildPostgresDSN(cfg etl.TargetDB) string {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		pqQuote(cfg.Host), port, pqQuote(cfg.User), pqQuote(cfg.Password), pqQuote(cfg.Database),
	)
}

// pqQuote quotes a keyword/value connection parameter.
func pqQuote(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
