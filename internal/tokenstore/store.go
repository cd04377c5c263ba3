// Package tokenstore persists GitHub API tokens in a local JSON config file.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrDuplicate is returned by Add when the token is already stored.
var ErrDuplicate = errors.New("token already stored")

// ErrNotFound is returned by Remove when the token is not stored.
var ErrNotFound = errors.New("token not found")

// classicToken matches the 40-hex-char format of pre-2021 personal access tokens.
var classicToken = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Store reads and writes the token config file. Methods re-read the
// file on each call so concurrent CLI invocations see each other's writes.
type Store struct {
	path string
}

type configFile struct {
	Tokens []string `json:"tokens"`
}

// DefaultPath returns the token config location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "gitrecon", "conf.json"), nil
}

// New returns a Store backed by the given file path.
func New(path string) *Store {
	return &Store{path: path}
}

// List returns all stored tokens in insertion order.
func (s *Store) List() ([]string, error) {
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	return cfg.Tokens, nil
}

// Add appends a token. Duplicates are rejected with ErrDuplicate.
func (s *Store) Add(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty token")
	}

	cfg, err := s.load()
	if err != nil {
		return err
	}
	for _, t := range cfg.Tokens {
		if t == token {
			return ErrDuplicate
		}
	}
	cfg.Tokens = append(cfg.Tokens, token)
	return s.save(cfg)
}

// Remove deletes a token. The argument may be the full token or its
// masked form as printed by List.
func (s *Store) Remove(token string) error {
	cfg, err := s.load()
	if err != nil {
		return err
	}

	kept := cfg.Tokens[:0]
	removed := false
	for _, t := range cfg.Tokens {
		if t == token || Mask(t) == token {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return ErrNotFound
	}
	cfg.Tokens = kept
	return s.save(cfg)
}

// Mask obscures the middle of a token for display. Short values are
// fully masked.
func Mask(token string) string {
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:8] + strings.Repeat("*", len(token)-12) + token[len(token)-4:]
}

// LooksLikeToken reports whether the value matches a known GitHub
// token format. A false result is a warning, not an error: GitHub has
// introduced new prefixes before.
func LooksLikeToken(token string) bool {
	for _, prefix := range []string{"ghp_", "gho_", "ghu_", "ghs_", "github_pat_"} {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return classicToken.MatchString(token)
}

func (s *Store) load() (*configFile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &configFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token config: %w", err)
	}

	var cfg configFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse token config %s: %w", s.path, err)
	}
	return &cfg, nil
}

func (s *Store) save(cfg *configFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token config: %w", err)
	}
	// Tokens are credentials, keep the file owner-only.
	if err := os.WriteFile(s.path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("write token config: %w", err)
	}
	return nil
}
