package quill

import (
	"context"
	"fmt"

	"github.com/quillnotes/quill/pkg/logger"
)

// Main is the application entry point used by cmd/quill. It parses the
// arguments, assembles the application, and dispatches the subcommand.
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	logData, err := logger.New().Make()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	app, err := New(ctx, config, logData.Logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	switch c := cmd.(type) {
	case *RunCommand:
		if err := app.Run(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}

	return nil
}
