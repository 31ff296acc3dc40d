// Package credentials stores the server contexts of certstorectl: which
// certstore servers the user talks to and the bearer token for each.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	DefaultConfigDir = "certstorectl"
	ConfigFileName   = "config.json"

	// EnvConfigPath points certstorectl at another contexts file.
	EnvConfigPath = "CERTSTORECTL_CONFIG"

	filePerm = 0600
	dirPerm  = 0700

	// expiryMargin treats a token as expired slightly early so it does not
	// lapse mid-request.
	expiryMargin = time.Minute
)

var (
	ErrNoCurrentContext = errors.New("no current context set")
	ErrContextNotFound  = errors.New("context not found")
	ErrContextExists    = errors.New("context already exists")
	ErrNotLoggedIn      = errors.New("not logged in - run 'certstorectl login' first")
)

// Context is one certstore server and the bearer token used against it.
// Subject, Role and ExpiresAt are copied from the token's claims at login.
type Context struct {
	ServerURL string    `json:"server_url"`
	Subject   string    `json:"subject,omitempty"`
	Role      string    `json:"role,omitempty"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the token is expired or about to be. A token
// without an expiry never expires.
func (c *Context) IsExpired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().Add(expiryMargin).After(c.ExpiresAt)
}

func (c *Context) HasToken() bool {
	return c.Token != ""
}

func (c *Context) logout() {
	c.Token = ""
	c.Subject = ""
	c.Role = ""
	c.ExpiresAt = time.Time{}
}

// contextsFile is the on-disk layout.
type contextsFile struct {
	CurrentContext string              `json:"current_context"`
	Contexts       map[string]*Context `json:"contexts"`
}

// Store reads and writes the contexts file. It is not safe for concurrent
// use; each command opens its own.
type Store struct {
	path string
	data contextsFile
}

// NewStore opens the contexts file named by $CERTSTORECTL_CONFIG, or the one
// under the XDG config directory.
func NewStore() (*Store, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return NewStoreAt(p)
	}
	base, err := os.UserConfigDir()
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		base, err = xdg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot locate config directory: %w", err)
	}
	return NewStoreAt(filepath.Join(base, DefaultConfigDir, ConfigFileName))
}

// NewStoreAt opens the contexts file at path. A missing file is an empty
// store; nothing is written until the first change.
func NewStoreAt(path string) (*Store, error) {
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	default:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
	}
	if s.data.Contexts == nil {
		s.data.Contexts = map[string]*Context{}
	}
	return s, nil
}

// save replaces the file atomically so an interrupted write never leaves
// a truncated token store behind.
func (s *Store) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+ConfigFileName+".*")
	if err != nil {
		return fmt.Errorf("cannot write %s: %w", s.path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cannot write %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// GetCurrentContext returns the selected context.
func (s *Store) GetCurrentContext() (*Context, error) {
	if s.data.CurrentContext == "" {
		return nil, ErrNoCurrentContext
	}
	return s.GetContext(s.data.CurrentContext)
}

func (s *Store) GetCurrentContextName() string {
	return s.data.CurrentContext
}

func (s *Store) GetContext(name string) (*Context, error) {
	if ctx, ok := s.data.Contexts[name]; ok {
		return ctx, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrContextNotFound, name)
}

// ListContexts returns the context names in order.
func (s *Store) ListContexts() []string {
	names := make([]string, 0, len(s.data.Contexts))
	for name := range s.data.Contexts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SetContext stores ctx under name, replacing any previous one. The first
// context stored becomes current.
func (s *Store) SetContext(name string, ctx *Context) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("context name cannot be empty")
	}
	s.data.Contexts[name] = ctx
	if s.data.CurrentContext == "" {
		s.data.CurrentContext = name
	}
	return s.save()
}

// UseContext makes name the current context.
func (s *Store) UseContext(name string) error {
	if _, err := s.GetContext(name); err != nil {
		return err
	}
	s.data.CurrentContext = name
	return s.save()
}

// RenameContext moves a context to a new name, keeping it current if it was.
func (s *Store) RenameContext(from, to string) error {
	ctx, err := s.GetContext(from)
	if err != nil {
		return err
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("context name cannot be empty")
	}
	if _, taken := s.data.Contexts[to]; taken {
		return fmt.Errorf("%w: %q", ErrContextExists, to)
	}
	delete(s.data.Contexts, from)
	s.data.Contexts[to] = ctx
	if s.data.CurrentContext == from {
		s.data.CurrentContext = to
	}
	return s.save()
}

// DeleteContext removes a context. Deleting the current one leaves no
// context selected.
func (s *Store) DeleteContext(name string) error {
	if _, err := s.GetContext(name); err != nil {
		return err
	}
	delete(s.data.Contexts, name)
	if s.data.CurrentContext == name {
		s.data.CurrentContext = ""
	}
	return s.save()
}

// ClearCurrentContext logs out of the current context. The server URL is
// kept for the next login.
func (s *Store) ClearCurrentContext() error {
	ctx, err := s.GetCurrentContext()
	if err != nil {
		return err
	}
	ctx.logout()
	return s.save()
}

// ConfigPath returns the contexts file location.
func (s *Store) ConfigPath() string {
	return s.path
}
