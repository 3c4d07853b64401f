// Package stores holds the configuration catalog: the global config and
// the share definitions in YAML, accounts and the ban list in JSON, and
// an optional PostgreSQL-backed store for all three.
package stores

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig lists all the fields needed to connect to a PostgreSQL database.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslMode"`
}

// String returns a connection string.
func (dc DatabaseConfig) String() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", dc.Host, dc.Port, dc.User, dc.Password, dc.Database, dc.SSLMode)
}

// Config lists the config fields.
type Config struct {
	ServerName     string `yaml:"serverName"`
	Workgroup      string `yaml:"workgroup"`
	Address        string `yaml:"address,omitempty"`
	RequireSigning bool   `yaml:"requireSigning,omitempty"`
	GuestOK        bool   `yaml:"guestOk,omitempty"`
	MaxConnections int    `yaml:"maxConnections,omitempty"`
	APIPort        int    `yaml:"apiPort,omitempty"`
	APIPassword    string `yaml:"apiPassword,omitempty"`
	LogLevel       string `yaml:"logLevel,omitempty"`

	// When present, accounts and shares come from PostgreSQL instead of
	// the flat files next to the config.
	Database *DatabaseConfig `yaml:"database,omitempty"`
}

// ReadConfig tries to read the config from the specified directory.
func ReadConfig(dir string) (cfg Config, err error) {
	path := filepath.Join(dir, "smb1d.yml")
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err = dec.Decode(&cfg); err != nil {
		return
	}
	if cfg.ServerName == "" {
		cfg.ServerName, _ = os.Hostname()
	}
	if cfg.Workgroup == "" {
		cfg.Workgroup = "WORKGROUP"
	}
	if cfg.Address == "" {
		cfg.Address = ":445"
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 64
	}
	return
}
