package tool

import (
	"fmt"
	"os"

	"github.com/kevinnadar22/mongovault/internal/config"
)

type PostgreSQLTool struct {
	config *config.DatabaseConfig
}

func NewPostgreSQL(cfg *config.DatabaseConfig) *PostgreSQLTool {
	return &PostgreSQLTool{config: cfg}
}

func (p *PostgreSQLTool) env() []string {
	return append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", p.config.Password))
}

// DumpCommand streams a custom-format dump to stdout.
func (p *PostgreSQLTool) DumpCommand() (string, []string, []string) {
	args := []string{
		fmt.Sprintf("--host=%s", p.config.Host),
		fmt.Sprintf("--port=%d", p.config.Port),
		fmt.Sprintf("--username=%s", p.config.Username),
		"--format=custom",
		p.config.Database,
	}
	return "pg_dump", args, p.env()
}

func (p *PostgreSQLTool) RestoreCommand(sourceDatabase string) (string, []string, []string) {
	args := []string{
		fmt.Sprintf("--host=%s", p.config.Host),
		fmt.Sprintf("--port=%d", p.config.Port),
		fmt.Sprintf("--username=%s", p.config.Username),
		fmt.Sprintf("--dbname=%s", p.config.Database),
		"--clean",
		"--if-exists",
	}
	return "pg_restore", args, p.env()
}

func (p *PostgreSQLTool) DatabaseName() string {
	return p.config.Database
}

func (p *PostgreSQLTool) Engine() string {
	return "postgresql"
}
