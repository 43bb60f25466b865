package quantize

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/nvr-ai/go-matte/common"
)

// EnvQuantizer names the default quantizer command.
const EnvQuantizer = "MATTE_QUANTIZER"

// Quantizer performs static QDQ quantization described by a manifest.
type Quantizer interface {
	Quantize(ctx context.Context, manifestPath string) error
}

// ExecQuantizer runs an external command with the manifest path as its final argument.
type ExecQuantizer struct {
	Command []string
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewExecQuantizer splits command on white space. An empty command falls back to
// $MATTE_QUANTIZER.
//
// Returns:
//   - *ExecQuantizer: The quantizer.
//   - error: common.ErrConfig when neither is set.
func NewExecQuantizer(command string) (*ExecQuantizer, error) {
	if command == "" {
		command = os.Getenv(EnvQuantizer)
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no quantizer command; pass --quantizer or set %s", common.ErrConfig, EnvQuantizer)
	}
	return &ExecQuantizer{Command: fields, Stdout: os.Stdout, Stderr: os.Stderr}, nil
}

// Quantize runs the command and waits for it.
func (q *ExecQuantizer) Quantize(ctx context.Context, manifestPath string) error {
	if len(q.Command) == 0 {
		return fmt.Errorf("%w: empty quantizer command", common.ErrConfig)
	}
	args := append(append([]string(nil), q.Command[1:]...), manifestPath)
	cmd := exec.CommandContext(ctx, q.Command[0], args...)
	cmd.Stdout = q.Stdout
	cmd.Stderr = q.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("quantizer %s: %w", q.Command[0], err)
	}
	return nil
}
