// Package sqlfluff runs the sqlfluff linter as a stdin/stdout filter and
// decodes its JSON report.
package sqlfluff

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Defaults used when a Linter field is left empty.
const (
	DefaultCommand = "sqlfluff"
	DefaultDialect = "snowflake"
	DefaultTimeout = 10 * time.Second
)

// ErrNoReport is returned when the tool output holds no JSON payload.
var ErrNoReport = errors.New("no JSON report in sqlfluff output")

// Violation is one rule violation. Line and Column are 1-based and refer to
// the SQL that was linted.
type Violation struct {
	Line        int
	Column      int
	Code        string
	Description string
	Name        string
}

// Linter invokes the sqlfluff command line.
type Linter struct {
	Command string        // executable, DefaultCommand when empty
	Dialect string        // --dialect value, DefaultDialect when empty
	Timeout time.Duration // per invocation, DefaultTimeout when zero
}

// Lint pipes sql through `<command> lint - --dialect <dialect> --format json`.
//
// sqlfluff exits non-zero when it finds violations, so the exit status is
// ignored whenever stdout holds a report. The process is killed when ctx is
// cancelled or the timeout expires.
func (l *Linter) Lint(ctx context.Context, sql string) ([]Violation, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, l.command(), l.args()...)
	cmd.Stdin = strings.NewReader(sql)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("sqlfluff interrupted: %w", ctxErr)
	}

	violations, err := ParseReport(stdout.Bytes())
	if err != nil {
		if runErr != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = runErr.Error()
			}
			return nil, fmt.Errorf("running %s: %s: %w", l.command(), msg, runErr)
		}
		return nil, err
	}
	return violations, nil
}

func (l *Linter) command() string {
	if l.Command == "" {
		return DefaultCommand
	}
	return l.Command
}

func (l *Linter) args() []string {
	dialect := l.Dialect
	if dialect == "" {
		dialect = DefaultDialect
	}
	return []string{"lint", "-", "--dialect", dialect, "--format", "json"}
}

type fileReport struct {
	Filepath   string         `json:"filepath"`
	Violations []rawViolation `json:"violations"`
}

// rawViolation accepts both the line_no/line_pos fields of older releases
// and the start_line_no/start_line_pos fields of newer ones.
type rawViolation struct {
	LineNo       int    `json:"line_no"`
	LinePos      int    `json:"line_pos"`
	StartLineNo  int    `json:"start_line_no"`
	StartLinePos int    `json:"start_line_pos"`
	Code         string `json:"code"`
	Description  string `json:"description"`
	Name         string `json:"name"`
}

func (v rawViolation) violation() Violation {
	line, col := v.LineNo, v.LinePos
	if line == 0 {
		line = v.StartLineNo
	}
	if col == 0 {
		col = v.StartLinePos
	}
	return Violation{
		Line:        line,
		Column:      col,
		Code:        v.Code,
		Description: v.Description,
		Name:        v.Name,
	}
}

// ParseReport decodes sqlfluff's JSON output.
//
// Bytes before the first '[' or '{' and after the matching last ']' or '}'
// are ignored. The payload may be an array of file reports or a single
// report.
func ParseReport(raw []byte) ([]Violation, error) {
	payload, ok := trimWrapper(raw)
	if !ok {
		return nil, ErrNoReport
	}

	var reports []fileReport
	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &reports); err != nil {
			return nil, fmt.Errorf("decoding sqlfluff report: %w", err)
		}
	} else {
		var single fileReport
		if err := json.Unmarshal(payload, &single); err != nil {
			return nil, fmt.Errorf("decoding sqlfluff report: %w", err)
		}
		reports = []fileReport{single}
	}

	var violations []Violation
	for _, r := range reports {
		for _, v := range r.Violations {
			violations = append(violations, v.violation())
		}
	}
	return violations, nil
}

func trimWrapper(raw []byte) ([]byte, bool) {
	start := bytes.IndexAny(raw, "[{")
	if start < 0 {
		return nil, false
	}
	closer := byte(']')
	if raw[start] == '{' {
		closer = '}'
	}
	end := bytes.LastIndexByte(raw, closer)
	if end < start {
		return nil, false
	}
	return raw[start : end+1], true
}
