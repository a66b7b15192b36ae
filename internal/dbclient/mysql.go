package dbclient

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"sfetl/internal/etl"
)

// buildMySQLDSN constructs a MySQL/MariaDB DSN from the target block.
func buildMySQLDSN(cfg etl.TargetDB) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", cfg.Host, port)
	c.DBName = cfg.Database
	c.ParseTime = true
	c.Timeout = 10 * time.Second
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}
