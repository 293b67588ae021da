package store

import (
	"bufio"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// ErrBankEmpty is returned when a random pick is requested from a bank with
// no usable lines.
var ErrBankEmpty = fmt.Errorf("equation bank is empty")

// EquationBank is a line-oriented flat file of equation texts loaded once
// into memory. A validity filter is injected by the caller so the store stays
// ignorant of expression syntax.
type EquationBank struct {
	logger   *slog.Logger
	fs       afero.Fs
	path     string
	validate func(line string) bool

	mu    sync.RWMutex
	lines []string
}

func NewEquationBank(fs afero.Fs, path string, validate func(string) bool, logger *slog.Logger) (*EquationBank, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &EquationBank{
		logger:   logger,
		fs:       fs,
		path:     path,
		validate: validate,
	}
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload replaces the in-memory lines with the latest file content.
func (b *EquationBank) Reload() error {
	f, err := b.fs.Open(b.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", b.path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if b.validate != nil && !b.validate(line) {
			b.logger.Warn("skipping invalid equation line", "line", line)
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", b.path, err)
	}

	b.mu.Lock()
	b.lines = lines
	b.mu.Unlock()
	b.logger.Info("equations loaded", "path", b.path, "count", len(lines))
	return nil
}

// Random picks one equation line uniformly.
func (b *EquationBank) Random() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.lines) == 0 {
		return "", ErrBankEmpty
	}
	return b.lines[rand.IntN(len(b.lines))], nil
}

// Len reports the number of usable lines.
func (b *EquationBank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}
