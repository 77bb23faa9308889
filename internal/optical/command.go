package optical

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// CommandDecoder shells out to an external decode binary (zxing, quirc).
// The image is written to a temp file passed as the final argument; the
// decoded string is the first non-empty line of stdout.
type CommandDecoder struct {
	name       string
	command    []string
	confidence float64
}

// NewCommandDecoder builds a decoder around a command line. The command is
// split on whitespace; an empty command means the binary is not installed
// on this host and every decode is a miss.
func NewCommandDecoder(name, command string, confidence float64) *CommandDecoder {
	return &CommandDecoder{
		name:       name,
		command:    strings.Fields(command),
		confidence: confidence,
	}
}

func (d *CommandDecoder) Name() string {
	return d.name
}

func (d *CommandDecoder) Decode(ctx context.Context, image []byte) (*Result, error) {
	if len(d.command) == 0 {
		return nil, nil
	}

	tmp, err := os.CreateTemp("", "scan-*.png")
	if err != nil {
		return nil, fmt.Errorf("stage scan image: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("stage scan image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("stage scan image: %w", err)
	}

	args := append(d.command[1:], filepath.Clean(tmp.Name()))
	cmd := exec.CommandContext(ctx, d.command[0], args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		// a non-zero exit is how these binaries report "nothing found"
		if _, ok := err.(*exec.ExitError); ok {
			return nil, nil
		}
		return nil, fmt.Errorf("run %s: %w", d.name, err)
	}

	for _, line := range strings.Split(stdout.String(), "\n") {
		if content := strings.TrimSpace(line); content != "" {
			return &Result{Content: content, Confidence: d.confidence}, nil
		}
	}
	return nil, nil
}
