// Package config loads the JSON/YAML configuration document described
// in spec §6, via viper so dotted-path lookups ("server.host") work
// against the same backing data the typed Config struct is decoded
// from. Grounded on the teacher's scheduler/config/config_test.go
// load-and-compare pattern (yaml.Unmarshal -> mapstructure.Decode).
package config

import (
	"time"

	"github.com/spf13/viper"
)

// ServerConfig is the directory's bind address (spec §6: server.host,
// server.port).
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// PeerConfig is a peer's bind address and transfer-port base (spec §6:
// peer.host, peer.base_port).
type PeerConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	BasePort int    `mapstructure:"base_port" yaml:"base_port"`
}

// ReplicationConfig carries the replication factor R (spec §6:
// replication.replication_factor).
type ReplicationConfig struct {
	ReplicationFactor int `mapstructure:"replication_factor" yaml:"replication_factor"`
	MaxTasks          int `mapstructure:"max_tasks" yaml:"max_tasks"`
}

// PeerDataConfig is one peer's on-disk directory layout (spec §6:
// data.peers.<peer_id>.{shared_dir, download_dir, replicated_dir}). The
// filesystem layout itself is a collaborator contract (spec §1); this
// struct only carries the paths through to the peer's file store
// adapter.
type PeerDataConfig struct {
	SharedDir     string `mapstructure:"shared_dir" yaml:"shared_dir"`
	DownloadDir   string `mapstructure:"download_dir" yaml:"download_dir"`
	ReplicatedDir string `mapstructure:"replicated_dir" yaml:"replicated_dir"`
}

// DataConfig groups per-peer directory layout and the (collaborator,
// opaque) file-generation parameters.
type DataConfig struct {
	Peers          map[string]PeerDataConfig `mapstructure:"peers" yaml:"peers"`
	FileGeneration map[string]interface{}    `mapstructure:"file_generation" yaml:"file_generation"`
}

// LoggingConfig controls the logger's destination and rotation policy
// (spec §6: logging.*).
type LoggingConfig struct {
	Console    bool   `mapstructure:"console" yaml:"console"`
	Dir        string `mapstructure:"dir" yaml:"dir"`
	FileName   string `mapstructure:"file_name" yaml:"file_name"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// TimeoutConfig carries the connect/read timeout defaults from spec §5:
// 10s for control connections, 30s for transfers.
type TimeoutConfig struct {
	Control  time.Duration `mapstructure:"control" yaml:"control"`
	Transfer time.Duration `mapstructure:"transfer" yaml:"transfer"`
}

// Config is the top-level, fully-decoded configuration document.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Peer        PeerConfig        `mapstructure:"peer" yaml:"peer"`
	Replication ReplicationConfig `mapstructure:"replication" yaml:"replication"`
	Data        DataConfig        `mapstructure:"data" yaml:"data"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Timeouts    TimeoutConfig     `mapstructure:"timeouts" yaml:"timeouts"`
}

// Default returns a Config populated with the same kind of baked-in
// defaults the teacher's scheduler/config/config_linux.go literal
// provides, before any file/env overlay is applied.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 7000},
		Peer:   PeerConfig{Host: "0.0.0.0", BasePort: 7100},
		Replication: ReplicationConfig{
			ReplicationFactor: 2,
			MaxTasks:          DefaultMaxTasks,
		},
		Logging: LoggingConfig{
			Console:    true,
			MaxSizeMB:  300,
			MaxBackups: 30,
		},
		Timeouts: TimeoutConfig{
			Control:  10 * time.Second,
			Transfer: 30 * time.Second,
		},
	}
}

// DefaultMaxTasks mirrors replication.DefaultMaxTasks without importing
// the replication package here, keeping config dependency-free of the
// domain packages it configures.
const DefaultMaxTasks = 5

// Loader reads the configuration document and exposes both the typed
// Config and viper's dotted-path Get, per spec §6.
type Loader struct {
	v *viper.Viper
}

// Load reads a YAML config document from path and decodes it over the
// defaults from Default(). An empty path returns the defaults
// untouched (useful for tests and for a peer that only needs the
// built-in bind addresses).
func Load(path string) (Config, *Loader, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, nil, err
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return cfg, nil, err
		}
	}

	return cfg, &Loader{v: v}, nil
}

// Get performs a dotted-path lookup against the backing document, per
// spec §6 ("A JSON document with dotted-path lookup").
func (l *Loader) Get(key string) interface{} {
	if l == nil || l.v == nil {
		return nil
	}
	return l.v.Get(key)
}
