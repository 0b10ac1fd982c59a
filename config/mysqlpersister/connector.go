// Licensed under the Apache License, Version 2.0
// Details: https://raw.githubusercontent.com/agata-anastazja/throttler/master/LICENSE

package mysqlpersister

import (
	"database/sql"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

type Connector interface {
	Connect() (*sql.DB, error)
}

// DSNConnector connects with a go-sql-driver DSN, e.g. "user:pass@tcp(host:3306)/db".
type DSNConnector struct {
	dsn string
}

func NewDSNConnector(dsn string) (*DSNConnector, error) {
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return nil, err
	}

	return &DSNConnector{dsn: dsn}, nil
}

func (c *DSNConnector) Connect() (*sql.DB, error) {
	return sql.Open("mysql", c.dsn)
}

// UnsafeConnector builds its DSN from parts, without escaping them.
type UnsafeConnector struct {
	dbUser string
	dbPass string
	dbHost string
	dbPort int
	dbName string
}

func NewUnsafeConnector(dbUser, dbPass, dbHost string, dbPort int, dbName string) *UnsafeConnector {
	return &UnsafeConnector{
		dbUser: dbUser,
		dbPass: dbPass,
		dbHost: dbHost,
		dbPort: dbPort,
		dbName: dbName,
	}
}

func (c *UnsafeConnector) Connect() (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = c.dbUser
	cfg.Passwd = c.dbPass
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.dbHost, strconv.Itoa(c.dbPort))
	cfg.DBName = c.dbName

	return sql.Open("mysql", cfg.FormatDSN())
}
