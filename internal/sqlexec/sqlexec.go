// Package sqlexec runs the ordered DDL scripts of the warehouse.
package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// SplitStatements splits a script on statement-terminating semicolons.
// Semicolons inside single-quoted strings, dollar-quoted bodies
// ($$ ... $$, $tag$ ... $tag$) and line comments do not terminate a
// statement, so CREATE FUNCTION bodies survive intact.
func SplitStatements(script string) []string {
	var statements []string
	var sb strings.Builder
	var dollarTag string // non-empty while inside a dollar-quoted body

	inString := false
	inLineComment := false

	runes := []rune(script)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if inLineComment {
			sb.WriteRune(c)
			if c == '\n' {
				inLineComment = false
			}
			continue
		}

		if dollarTag != "" {
			sb.WriteRune(c)
			if c == '$' && strings.HasSuffix(sb.String(), dollarTag) {
				dollarTag = ""
			}
			continue
		}

		if inString {
			sb.WriteRune(c)
			if c == '\'' {
				// doubled quote is an escaped quote
				if i+1 < len(runes) && runes[i+1] == '\'' {
					sb.WriteRune(runes[i+1])
					i++
				} else {
					inString = false
				}
			}
			continue
		}

		switch {
		case c == '-' && i+1 < len(runes) && runes[i+1] == '-':
			inLineComment = true
			sb.WriteRune(c)
		case c == '\'':
			inString = true
			sb.WriteRune(c)
		case c == '$':
			if tag, ok := dollarQuoteAt(runes, i); ok {
				dollarTag = tag
				sb.WriteString(tag)
				i += len(tag) - 1
			} else {
				sb.WriteRune(c)
			}
		case c == ';':
			stmt := strings.TrimSpace(sb.String())
			if stmt != "" && !isCommentOnly(stmt) {
				statements = append(statements, stmt)
			}
			sb.Reset()
		default:
			sb.WriteRune(c)
		}
	}

	if stmt := strings.TrimSpace(sb.String()); stmt != "" && !isCommentOnly(stmt) {
		statements = append(statements, stmt)
	}
	return statements
}

// dollarQuoteAt reports the dollar-quote tag starting at position i, e.g.
// "$$" or "$body$".
func dollarQuoteAt(runes []rune, i int) (string, bool) {
	j := i + 1
	for j < len(runes) {
		c := runes[j]
		if c == '$' {
			return string(runes[i : j+1]), true
		}
		if !isTagRune(c) {
			return "", false
		}
		j++
	}
	return "", false
}

func isTagRune(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

// Runner executes the ordered scripts of a directory.
type Runner struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewRunner(db *sql.DB, logger *zap.Logger) *Runner {
	return &Runner{db: db, logger: logger}
}

// ListScripts returns the .sql files of dir in lexical order; the numeric
// prefixes (000_, 001_, ...) make that the deployment order.
func ListScripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read script dir %s: %w", dir, err)
	}
	var scripts []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			scripts = append(scripts, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(scripts)
	return scripts, nil
}

// ExecuteScript runs every statement of one script file in order. Scripts
// are written idempotent, so a failed deployment is rerun from the start.
func (r *Runner) ExecuteScript(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read script %s: %w", path, err)
	}

	statements := SplitStatements(string(raw))
	for i, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			preview := stmt
			if len(preview) > 120 {
				preview = preview[:120]
			}
			return i, fmt.Errorf("failed on statement %d/%d of %s: %w (statement: %s)",
				i+1, len(statements), filepath.Base(path), err, preview)
		}
	}

	r.logger.Info("script executed",
		zap.String("script", filepath.Base(path)),
		zap.Int("statements", len(statements)))
	return len(statements), nil
}
