package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Params collects the credentials and address Open needs to reach MySQL.
type Params struct {
	User string
	Pass string // empty means no password
	Host string
	Port string
	Name string
}

// Open connects to MySQL and verifies the connection. All pass
// timestamps are stored and compared in UTC, so the DSN pins the
// session location; parseTime maps DATETIME columns onto time.Time.
func Open(p Params) (*sql.DB, error) {
	auth := p.User
	if p.Pass != "" {
		auth = fmt.Sprintf("%s:%s", p.User, p.Pass)
	}
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, p.Host, p.Port, p.Name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings sized for one school district's traffic.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}
