// Package compiler invokes an external type-checker on generated
// game source. An empty diagnostic string means the source compiles.
package compiler

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"gamesmith/apperr"
	"gamesmith/logger"
)

// Checker validates a source file. It returns the compiler's
// diagnostic output on failure and the empty string on success;
// a non-nil error means the checker itself could not run.
type Checker interface {
	Check(ctx context.Context, sourcePath string) (string, error)
}

// TscChecker shells out to the TypeScript compiler.
type TscChecker struct {
	Bin    string
	Args   []string
	logger logger.Logger
}

func NewTscChecker(bin string, args []string, l logger.Logger) *TscChecker {
	if bin == "" {
		bin = "tsc"
	}
	if l == nil {
		l = logger.NewNullLogger()
	}
	return &TscChecker{Bin: bin, Args: args, logger: l}
}

func (c *TscChecker) Check(ctx context.Context, sourcePath string) (string, error) {
	args := append(append([]string{}, c.Args...), "--noEmit", sourcePath)
	cmd := exec.CommandContext(ctx, c.Bin, args...)

	out, err := cmd.CombinedOutput()
	diagnostic := strings.TrimSpace(string(out))

	if err == nil {
		return "", nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Compile failure: the diagnostic is the payload.
		if diagnostic == "" {
			diagnostic = exitErr.String()
		}
		c.logger.WithField("source", sourcePath).Debug("compile check failed")
		return diagnostic, nil
	}

	// The compiler process itself could not run.
	return "", apperr.NewServiceError("compiler", err)
}
