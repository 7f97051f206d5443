package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"

	"github.com/vidyasagar/opdsnav/internal/browser"
)

// ConfigEnv overrides the config file location.
const ConfigEnv = "OPDSNAV_CONFIG"

// Account is a catalog the user can browse.
type Account struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	CatalogURI string `json:"catalog_uri"`
	Username   string `json:"username,omitempty"`

	// PasswordEnv names the environment variable holding the password,
	// so secrets stay out of the file.
	PasswordEnv string `json:"password_env,omitempty"`
}

// Credentials returns basic credentials when a username is configured.
func (a Account) Credentials() browser.Credentials {
	if a.Username == "" {
		return nil
	}
	var password string
	if a.PasswordEnv != "" {
		password = os.Getenv(a.PasswordEnv)
	}
	return browser.BasicCredentials{Username: a.Username, Password: password}
}

// Config holds opdsnav user configuration.
type Config struct {
	Theme                  string    `json:"theme"`
	ShowOnlySupportedBooks bool      `json:"show_only_supported_books"`
	SupportedFormats       []string  `json:"supported_formats"`
	RequestsPerSecond      float64   `json:"requests_per_second"`
	UserAgent              string    `json:"user_agent,omitempty"`
	Accounts               []Account `json:"accounts"`
	path                   string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Theme:                  "default",
		ShowOnlySupportedBooks: true,
		SupportedFormats: []string{
			"application/epub+zip",
			"application/pdf",
			"application/audiobook+json",
			"application/vnd.adobe.adept+xml",
			"application/atom+xml",
		},
		RequestsPerSecond: 4,
		Accounts: []Account{{
			ID:         "gutenberg",
			Title:      "Project Gutenberg",
			CatalogURI: "https://m.gutenberg.org/ebooks.opds/",
		}},
	}
}

// LoadConfig loads configuration from $OPDSNAV_CONFIG or the standard
// config directory, writing the defaults when no file exists.
func LoadConfig() (*Config, error) {
	path := os.Getenv(ConfigEnv)
	if path == "" {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.json")
	}
	return LoadConfigFile(path)
}

// LoadConfigFile loads configuration from path.
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := cfg.Save(); err != nil {
				return nil, err
			}
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Accounts come only from the file.
	cfg.Accounts = nil
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.path = path
	return &cfg, nil
}

// Validate checks that accounts have unique IDs and absolute catalog URIs.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, a := range c.Accounts {
		switch {
		case a.ID == "":
			errs = append(errs, fmt.Errorf("account %d: missing id", i))
		case seen[a.ID]:
			errs = append(errs, fmt.Errorf("account %q: duplicate id", a.ID))
		}
		seen[a.ID] = true

		u, err := url.Parse(a.CatalogURI)
		if err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("account %q: catalog_uri must be an absolute URI", a.ID))
		}
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests_per_second must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Account returns the account with the given ID.
func (c *Config) Account(id string) (Account, bool) {
	for _, a := range c.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

// Save writes the configuration to disk.
func (c *Config) Save() error {
	if c.path == "" {
		dir, err := configDir()
		if err != nil {
			return err
		}
		c.path = filepath.Join(dir, "config.json")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(c.path, data, 0o644)
}

// DataDir returns the data directory for persistent storage.
func DataDir() (string, error) {
	return appDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func configDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

func appDir(xdgEnv, fallback string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "opdsnav"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "opdsnav"), nil
		}
		return filepath.Join(home, ".opdsnav"), nil
	default: // Linux, BSD, etc.
		if xdg := os.Getenv(xdgEnv); xdg != "" {
			return filepath.Join(xdg, "opdsnav"), nil
		}
		return filepath.Join(home, fallback, "opdsnav"), nil
	}
}
