package tool

import (
	"fmt"

	"github.com/kevinnadar22/mongovault/internal/config"
)

type MySQLTool struct {
	config *config.DatabaseConfig
}

func NewMySQL(cfg *config.DatabaseConfig) *MySQLTool {
	return &MySQLTool{config: cfg}
}

func (m *MySQLTool) connArgs() []string {
	return []string{
		fmt.Sprintf("--host=%s", m.config.Host),
		fmt.Sprintf("--port=%d", m.config.Port),
		fmt.Sprintf("--user=%s", m.config.Username),
		fmt.Sprintf("--password=%s", m.config.Password),
	}
}

// DumpCommand streams SQL to stdout.
func (m *MySQLTool) DumpCommand() (string, []string, []string) {
	args := append(m.connArgs(),
		"--single-transaction",
		"--quick",
		"--lock-tables=false",
		"--routines",
		"--triggers",
		"--events",
		m.config.Database,
	)
	return "mysqldump", args, nil
}

func (m *MySQLTool) RestoreCommand(sourceDatabase string) (string, []string, []string) {
	args := append(m.connArgs(), m.config.Database)
	return "mysql", args, nil
}

func (m *MySQLTool) DatabaseName() string {
	return m.config.Database
}

func (m *MySQLTool) Engine() string {
	return "mysql"
}
