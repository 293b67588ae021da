package store

import (
	"bufio"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// Player is one persisted account record.
type Player struct {
	Username  string
	Password  string
	Victories int
	Resolved  int
}

var playerSchema = []Field{
	{Name: "username", Kind: KindString},
	{Name: "password", Kind: KindString},
	{Name: "victories", Kind: KindInt},
	{Name: "resolved", Kind: KindInt},
}

func encodePlayer(p Player) (string, error) {
	return encodeFields([]any{p.Username, p.Password, p.Victories, p.Resolved}, playerSchema)
}

func decodePlayer(line string) (Player, error) {
	vals, err := decodeFields(line, playerSchema)
	if err != nil {
		return Player{}, err
	}
	return Player{
		Username:  vals[0].(string),
		Password:  vals[1].(string),
		Victories: vals[2].(int),
		Resolved:  vals[3].(int),
	}, nil
}

// PlayerStore keeps player accounts in a line-oriented flat file, cached in
// memory. The file is created when missing and rewritten whole on every
// mutation.
type PlayerStore struct {
	logger *slog.Logger
	fs     afero.Fs
	path   string

	mu      sync.RWMutex
	players map[string]Player
}

func NewPlayerStore(fs afero.Fs, path string, logger *slog.Logger) (*PlayerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &PlayerStore{
		logger:  logger,
		fs:      fs,
		path:    path,
		players: make(map[string]Player),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PlayerStore) load() error {
	exists, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	if !exists {
		if err := afero.WriteFile(s.fs, s.path, nil, 0o644); err != nil {
			return fmt.Errorf("create %s: %w", s.path, err)
		}
		s.logger.Info("player file created", "path", s.path)
		return nil
	}

	f, err := s.fs.Open(s.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p, err := decodePlayer(line)
		if err != nil {
			s.logger.Warn("skipping invalid player record", "line", line, "error", err)
			continue
		}
		s.players[p.Username] = p
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	s.logger.Info("players loaded", "path", s.path, "count", len(s.players))
	return nil
}

// save rewrites the whole file from the in-memory map, sorted for stable
// output. Callers hold at least the read lock already, so this takes none.
func (s *PlayerStore) save(players map[string]Player) error {
	names := make([]string, 0, len(players))
	for name := range players {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		line, err := encodePlayer(players[name])
		if err != nil {
			return err
		}
		b.WriteString(line + "\n")
	}
	if err := afero.WriteFile(s.fs, s.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// Register creates a new account. It reports false when the username is taken
// or invalid.
func (s *PlayerStore) Register(username, password string) bool {
	if username == "" || password == "" || strings.Contains(username, fieldSep) || strings.Contains(password, fieldSep) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.players[username]; taken {
		return false
	}
	s.players[username] = Player{Username: username, Password: password}
	if err := s.save(s.players); err != nil {
		s.logger.Error("saving players failed", "error", err)
	}
	s.logger.Info("player registered", "username", username)
	return true
}

// Authenticate checks the credentials and returns the account on success.
func (s *PlayerStore) Authenticate(username, password string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[username]
	if !ok || p.Password != password {
		return Player{}, false
	}
	return p, true
}

// Get returns the account for username.
func (s *PlayerStore) Get(username string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[username]
	return p, ok
}

// AddResolved increments a player's solved-equation count and persists it.
func (s *PlayerStore) AddResolved(username string) {
	s.update(username, func(p *Player) { p.Resolved++ })
}

// AddVictory increments a player's victory count and persists it.
func (s *PlayerStore) AddVictory(username string) {
	s.update(username, func(p *Player) { p.Victories++ })
}

func (s *PlayerStore) update(username string, mutate func(*Player)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[username]
	if !ok {
		return
	}
	mutate(&p)
	s.players[username] = p
	if err := s.save(s.players); err != nil {
		s.logger.Error("saving players failed", "error", err)
	}
}

// Len reports the number of accounts.
func (s *PlayerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}
