package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Options describes the MySQL connection.  PingAttempts bounds how many
// times Open waits for the server before giving up; the storefront is
// usually started next to a database container that is still booting.
type Options struct {
	User         string
	Pass         string
	Host         string
	Port         string
	Name         string
	PingAttempts int
	PingBackoff  time.Duration
}

// DSN builds the driver connection string.  parseTime maps DATETIME to
// time.Time and loc=UTC keeps order timestamps consistent.
func (o Options) DSN() string {
	c := mysql.NewConfig()
	c.User = o.User
	c.Passwd = o.Pass
	c.Net = "tcp"
	c.Addr = o.Host + ":" + o.Port
	c.DBName = o.Name
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// Open connects to MySQL and waits until the server answers a ping.
func Open(ctx context.Context, o Options) (*sql.DB, error) {
	db, err := sql.Open("mysql", o.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	attempts := o.PingAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := o.PingBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	for i := 1; ; i++ {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pctx)
		cancel()
		if err == nil {
			return db, nil
		}
		if i >= attempts {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(backoff):
			continue
		}
		break
	}
	_ = db.Close()
	return nil, fmt.Errorf("mysql ping: %w", err)
}
