package tool

import (
	"fmt"

	"github.com/kevinnadar22/mongovault/internal/config"
)

type MongoDBTool struct {
	config *config.DatabaseConfig
}

func NewMongoDB(cfg *config.DatabaseConfig) *MongoDBTool {
	return &MongoDBTool{config: cfg}
}

func (m *MongoDBTool) uri() string {
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d/%s",
		m.config.Username,
		m.config.Password,
		m.config.Host,
		m.config.Port,
		m.config.Database,
	)

	if m.config.AuthDatabase != "" {
		uri += fmt.Sprintf("?authSource=%s", m.config.AuthDatabase)
	}

	return uri
}

// DumpCommand streams the dump to stdout; --archive without a value selects
// the archive format on standard output.
func (m *MongoDBTool) DumpCommand() (string, []string, []string) {
	args := []string{
		fmt.Sprintf("--uri=%s", m.uri()),
		fmt.Sprintf("--db=%s", m.config.Database),
		"--archive",
	}
	return "mongodump", args, nil
}

func (m *MongoDBTool) RestoreCommand(sourceDatabase string) (string, []string, []string) {
	args := []string{
		fmt.Sprintf("--uri=%s", m.uri()),
		"--archive",
		"--drop",
		fmt.Sprintf("--nsFrom=%s.*", sourceDatabase),
		fmt.Sprintf("--nsTo=%s.*", m.config.Database),
	}
	return "mongorestore", args, nil
}

func (m *MongoDBTool) DatabaseName() string {
	return m.config.Database
}

func (m *MongoDBTool) Engine() string {
	return "mongodb"
}
