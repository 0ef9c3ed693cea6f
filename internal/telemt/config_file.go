// Package telemt reads and edits the proxy's TOML configuration, which is the
// credential store the proxy loads at startup.
package telemt

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/logger"
)

const defaultPublicPort = 443

var (
	ErrInvalidUsername = errors.New("invalid proxy username")
	ErrInvalidSecret   = errors.New("secret must be 32 hex characters")

	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)
	secretPattern   = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
)

// ConfigFile is the credential store backed by the proxy's config file. Users
// live in the [access.users] table as name = "hexsecret". Every mutation is a
// full read-modify-write under one mutex followed by an atomic rename.
type ConfigFile struct {
	path string
	mu   sync.Mutex
}

func NewConfigFile(path string) *ConfigFile {
	return &ConfigFile{path: path}
}

func (c *ConfigFile) Path() string {
	return c.path
}

// Upsert sets the secret for username, creating the user if needed.
func (c *ConfigFile) Upsert(username, secret string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	if !secretPattern.MatchString(secret) {
		return ErrInvalidSecret
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	logger.ExternalServiceCall("telemt-config", "upsert", "path", c.path, "username", username)
	doc, err := c.read()
	if err != nil {
		logger.ExternalServiceResult("telemt-config", "upsert", err)
		return err
	}
	users := ensureTable(ensureTable(doc, "access"), "users")
	users[username] = secret

	err = c.write(doc)
	logger.ExternalServiceResult("telemt-config", "upsert", err, "username", username)
	return err
}

// Remove deletes username and reports whether the file changed.
func (c *ConfigFile) Remove(username string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.read()
	if err != nil {
		return false, err
	}
	users := table(table(doc, "access"), "users")
	if _, ok := users[username]; !ok {
		return false, nil
	}
	delete(users, username)

	logger.ExternalServiceCall("telemt-config", "remove", "path", c.path, "username", username)
	err = c.write(doc)
	logger.ExternalServiceResult("telemt-config", "remove", err, "username", username)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Usernames lists the configured users in sorted order.
func (c *ConfigFile) Usernames() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := c.read()
	if err != nil {
		return nil, err
	}
	users := table(table(doc, "access"), "users")
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LinkParams reads what a client link needs. The public port falls back to
// [server] port and then to 443. A missing [general.modes] table means TLS only.
func (c *ConfigFile) LinkParams() (domain.LinkParams, error) {
	c.mu.Lock()
	doc, err := c.read()
	c.mu.Unlock()
	if err != nil {
		return domain.LinkParams{}, err
	}

	general := table(doc, "general")
	links := table(general, "links")

	params := domain.LinkParams{Port: defaultPublicPort}
	params.Host, _ = links["public_host"].(string)
	if port, ok := intValue(links["public_port"]); ok {
		params.Port = port
	} else if port, ok := intValue(table(doc, "server")["port"]); ok {
		params.Port = port
	}
	params.TLSDomain, _ = table(doc, "censorship")["tls_domain"].(string)

	modes, ok := general["modes"].(map[string]any)
	if !ok {
		params.TLS = true
		return params, nil
	}
	params.Classic, _ = modes["classic"].(bool)
	params.Secure, _ = modes["secure"].(bool)
	params.TLS, _ = modes["tls"].(bool)
	return params, nil
}

func (c *ConfigFile) read() (map[string]any, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.path, err)
	}
	doc := make(map[string]any)
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", c.path, err)
	}
	return doc, nil
}

func (c *ConfigFile) write(doc map[string]any) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}

	mode := os.FileMode(0o600)
	if info, err := os.Stat(c.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".telemt-*.toml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", c.path, err)
	}
	return nil
}

// table returns the named sub-table or an empty map when absent.
func table(parent map[string]any, key string) map[string]any {
	if parent == nil {
		return map[string]any{}
	}
	if t, ok := parent[key].(map[string]any); ok {
		return t
	}
	return map[string]any{}
}

func ensureTable(parent map[string]any, key string) map[string]any {
	if t, ok := parent[key].(map[string]any); ok {
		return t
	}
	t := make(map[string]any)
	parent[key] = t
	return t
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}
