package quill

// Command is a parsed subcommand together with its options. The pattern
// keeps command-specific flags out of the shared [Config].
type Command interface {
	// Name returns the subcommand name as given on the command line.
	Name() string
}

// RunCommand starts the HTTP surface and serves until the context ends.
type RunCommand struct {
	// Addr overrides Config.Addr when non-empty.
	Addr string
}

func (c *RunCommand) Name() string {
	return "run"
}
