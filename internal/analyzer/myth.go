package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/cuongbtq/analysis-service/internal/domain"
)

// DefaultArgs asks myth for a JSON report of the bytecodes appended after -c
var DefaultArgs = []string{"-x", "-o", "json", "-c"}

// Config holds the analyzer command line
type Config struct {
	Command string
	Args    []string
}

// Myth runs the myth command line tool
type Myth struct {
	command string
	args    []string
	logger  *slog.Logger
}

// report only decodes the envelope; issues are kept as raw JSON
type report struct {
	Success bool           `json:"success"`
	Issues  []domain.Issue `json:"issues"`
	Error   string         `json:"error"`
}

// NewMyth creates a new Myth analyzer
func NewMyth(config Config, logger *slog.Logger) *Myth {
	command := config.Command
	if command == "" {
		command = "myth"
	}

	args := config.Args
	if len(args) == 0 {
		args = DefaultArgs
	}

	return &Myth{
		command: command,
		args:    args,
		logger:  logger,
	}
}

// Analyze runs the tool once over all inputs
func (m *Myth) Analyze(ctx context.Context, inputs []string) ([]domain.Issue, error) {
	args := make([]string, 0, len(m.args)+len(inputs))
	args = append(args, m.args...)
	args = append(args, inputs...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.command, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	m.logger.Debug("Running analyzer",
		slog.String("command", m.command),
		slog.Int("inputs", len(inputs)),
	)

	if err := cmd.Run(); err != nil {
		m.logger.Error("Analyzer command failed",
			slog.String("command", m.command),
			slog.Any("error", err),
		)
		return nil, fmt.Errorf("an error occurred when running %s: %w\nOutput: %s\nError Output: %s",
			m.command, err, strings.TrimSpace(stdout.String()), strings.TrimSpace(stderr.String()))
	}

	return parseReport(stdout.Bytes())
}

func parseReport(data []byte) ([]domain.Issue, error) {
	var r report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid JSON output from analyzer: %w", err)
	}

	if !r.Success {
		msg := r.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, errors.New("an error occurred: " + msg)
	}

	if r.Issues == nil {
		return []domain.Issue{}, nil
	}
	return r.Issues, nil
}
