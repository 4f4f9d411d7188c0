package server

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	oidc "github.com/legit-games/oidc-core"
)

// AppConfig defines deployment configuration loaded from files and environment.
type AppConfig struct {
	Env    string `koanf:"env"`
	Listen string `koanf:"listen"`

	Issuer   string         `koanf:"issuer"`
	Database DatabaseConfig `koanf:"database"`
	Valkey   ValkeyConfig   `koanf:"valkey"`

	// Signing key material; a fresh RSA key is generated when unset.
	SigningKeyPEMFile string `koanf:"signing_key_pem_file"`

	// Options overrides the protocol engine defaults.
	Options *oidc.Options `koanf:"options"`
}

type DatabaseConfig struct {
	// DSN for the Postgres grant and client stores; empty keeps everything
	// in memory.
	DSN string `koanf:"dsn"`
}

type ValkeyConfig struct {
	// Addr of the Valkey server backing the throttle/replay cache; empty
	// keeps the cache in memory.
	Addr   string `koanf:"addr"`
	Prefix string `koanf:"prefix"`
}

var (
	cfgOnce sync.Once
	cfgInst *AppConfig
)

// GetConfig loads and returns the singleton AppConfig. Loading order:
// 1) config/config.yaml (optional)
// 2) config/config.<APP_ENV>.yaml (optional), APP_ENV defaults to "local"
// 3) Environment variables with prefix OIDC_ mapped using __ as nested
// separator, e.g. OIDC_DATABASE__DSN
func GetConfig() *AppConfig {
	cfgOnce.Do(func() {
		cfgInst = LoadConfig(os.Getenv("CONFIG_DIR"))
	})
	return cfgInst
}

// LoadConfig reads configuration from the given directory plus environment
// variables. An empty configDir defaults to "config".
func LoadConfig(configDir string) *AppConfig {
	k := koanf.New(".")
	if configDir == "" {
		configDir = "config"
	}

	envName := os.Getenv("APP_ENV")
	if envName == "" {
		envName = "local"
	}
	for _, name := range []string{"config.yaml", "config." + envName + ".yaml"} {
		path := filepath.Join(configDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			log.Printf("config: failed loading %s: %v", path, err)
		}
	}

	// OIDC_DATABASE__DSN -> database.dsn
	_ = k.Load(env.Provider("OIDC_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "OIDC_")), "__", ".")
	}), nil)

	c := &AppConfig{}
	if err := k.Unmarshal("", c); err != nil {
		log.Printf("config: unmarshal error: %v", err)
	}
	if c.Env == "" {
		c.Env = envName
	}
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	return c
}

// EngineOptions merges the config onto engine defaults.
func (c *AppConfig) EngineOptions() *oidc.Options {
	options := oidc.NewOptions()
	if c.Options != nil {
		options = c.Options
	}
	if c.Issuer != "" {
		options.IssuerURI = c.Issuer
	}
	return options
}
