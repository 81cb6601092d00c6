package domain

// Tool builds the invocation of the external dump/restore binaries for one
// configured database. Adapters only produce argv and environment; the
// runner owns the subprocess. Dump writes the archive stream to stdout,
// restore reads it from stdin.
type Tool interface {
	Engine() string
	// DatabaseName is the name of the database the tool dumps into or
	// restores from, as known to the server.
	DatabaseName() string
	DumpCommand() (bin string, args []string, env []string)
	// RestoreCommand restores an archive captured from sourceDatabase into
	// this tool's database.
	RestoreCommand(sourceDatabase string) (bin string, args []string, env []string)
}
