package provision

import (
	"context"
	"fmt"

	"github.com/presshost/presshost/internal/db"
)

// DatabaseProvisioner creates the backing-store database and credentials for
// a site.
type DatabaseProvisioner interface {
	Provision(ctx context.Context, site *db.Site) error
}

// MySQLProvisioner shells out to the mysql client, one statement per
// invocation. The statement text is part of the compatibility surface with
// the local MySQL install; identifiers are pre-sanitized at credential
// generation, never taken raw from user input.
type MySQLProvisioner struct {
	runner CommandRunner
}

func NewMySQLProvisioner(runner CommandRunner) *MySQLProvisioner {
	return &MySQLProvisioner{runner: runner}
}

func (p *MySQLProvisioner) Provision(ctx context.Context, site *db.Site) error {
	statements := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s;", site.DBName),
		fmt.Sprintf("CREATE USER IF NOT EXISTS %s@localhost IDENTIFIED BY '%s';", site.DBUser, site.DBPassword),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON %s.* TO %s@localhost;", site.DBName, site.DBUser),
		"FLUSH PRIVILEGES;",
	}

	for _, stmt := range statements {
		if out, err := p.runner.Run(ctx, "mysql", "-e", stmt); err != nil {
			return fmt.Errorf("database creation failed: %s", out)
		}
	}

	return nil
}
