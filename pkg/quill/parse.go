package quill

import (
	"flag"
	"fmt"
	"os"
)

// Parse parses command line arguments into the command to execute and the
// shared application configuration. Flags fall back to QUILL_* environment
// variables so deployments can configure the backend without a wrapper
// script.
func Parse(args []string) (Command, *Config, error) {
	flagSet := flag.NewFlagSet("quill", flag.ContinueOnError)

	var (
		endpoint  = flagSet.String("endpoint", envOr("QUILL_ENDPOINT", "ws://localhost:8000/rpc"), "SurrealDB RPC endpoint URL")
		namespace = flagSet.String("namespace", envOr("QUILL_NAMESPACE", "quill"), "SurrealDB namespace")
		database  = flagSet.String("database", envOr("QUILL_DATABASE", "quill"), "SurrealDB database")
		access    = flagSet.String("access", envOr("QUILL_ACCESS", "account"), "SurrealDB record access method for sign-in/sign-up")
		addr      = flagSet.String("addr", envOr("QUILL_ADDR", ":8080"), "HTTP listen address")
		demo      = flagSet.Bool("demo", false, "Run against an in-memory store instead of SurrealDB")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	remainingArgs := flagSet.Args()
	if len(remainingArgs) == 0 {
		return nil, nil, fmt.Errorf(`subcommand required

Usage: quill [flags] <command>

Commands:
  run       Start the quill server

Examples:
  quill run                                          # Serve against ws://localhost:8000/rpc
  quill -endpoint ws://db.internal:8000/rpc run      # Custom SurrealDB endpoint
  quill -demo run                                    # No backend needed, in-memory store
  quill -addr :9090 run                              # Custom listen address`)
	}

	config := &Config{
		Endpoint:  *endpoint,
		Namespace: *namespace,
		Database:  *database,
		Access:    *access,
		Addr:      *addr,
		Demo:      *demo,
	}

	var cmd Command
	switch remainingArgs[0] {
	case "run":
		cmd = &RunCommand{Addr: *addr}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s", remainingArgs[0])
	}
	return cmd, config, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
