// Package testutil provides shared helpers for repository tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

const (
	envVerilatorOracleBin           = "VERILATOR_ORACLE_BIN"
	envVerilatorOracleVersionPrefix = "VERILATOR_ORACLE_VERSION_PREFIX"
	envVerilatorOracleRequired      = "VERILATOR_ORACLE_REQUIRED"
)

// VerilatorOracle runs the open-source Verilator compiler in lint-only mode
// as a syntax compatibility oracle: formatted output that Verilator can no
// longer parse indicates the formatter corrupted the source.
type VerilatorOracle struct {
	Bin           string
	VersionPrefix string
	Required      bool
}

// VerilatorOracleFromEnv builds oracle configuration from environment variables.
func VerilatorOracleFromEnv() VerilatorOracle {
	bin := strings.TrimSpace(os.Getenv(envVerilatorOracleBin))
	if bin == "" {
		bin = "verilator"
	}
	required := strings.TrimSpace(os.Getenv(envVerilatorOracleRequired))
	return VerilatorOracle{
		Bin:           bin,
		VersionPrefix: strings.TrimSpace(os.Getenv(envVerilatorOracleVersionPrefix)),
		Required:      required == "1" || strings.EqualFold(required, "true"),
	}
}

// RequireVerilatorOracle returns a configured oracle or skips the test when unavailable.
func RequireVerilatorOracle(t testing.TB) VerilatorOracle {
	t.Helper()

	oracle := VerilatorOracleFromEnv()
	if err := oracle.CheckAvailability(context.Background()); err != nil {
		if oracle.Required {
			t.Fatalf("verilator oracle unavailable: %v", err)
		}
		t.Skipf("skipping verilator oracle compatibility test: %v", err)
	}
	return oracle
}

// CheckAvailability verifies the binary exists and matches the configured version prefix (if any).
func (o VerilatorOracle) CheckAvailability(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := exec.LookPath(o.Bin); err != nil {
		return fmt.Errorf("look up %q: %w", o.Bin, err)
	}

	if o.VersionPrefix == "" {
		return nil
	}

	version, err := o.Version(ctx)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(version, o.VersionPrefix) {
		return fmt.Errorf("oracle version %q does not match required prefix %q", version, o.VersionPrefix)
	}
	return nil
}

// Version returns `verilator --version` output.
func (o VerilatorOracle) Version(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	//nolint:gosec // Test helper intentionally executes a configured local verilator binary.
	cmd := exec.CommandContext(ctx, o.Bin, "--version")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("run %s --version: %w (%s)", o.Bin, err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// ValidateFile runs `verilator --lint-only` against path and returns an
// error if Verilator cannot parse it as valid SystemVerilog.
func (o VerilatorOracle) ValidateFile(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("empty path")
	}

	//nolint:gosec // Test helper intentionally executes a configured local verilator binary on a temporary fixture path.
	cmd := exec.CommandContext(ctx, o.Bin, "--lint-only", "-Wno-fatal", "--timing", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("verilator oracle validation failed: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}
