package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v2"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver" toml:"driver"` // pgx, postgres, mysql, sqlite
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	Name     string `yaml:"name" toml:"name"`
	// DSN overrides the fields above when set.
	DSN string `yaml:"dsn" toml:"dsn"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers" toml:"brokers"`
	EventsTopic string   `yaml:"events_topic" toml:"events_topic"`
	IngestTopic string   `yaml:"ingest_topic" toml:"ingest_topic"`
	GroupID     string   `yaml:"group_id" toml:"group_id"`
}

type DriveConfig struct {
	CredentialsFile string `yaml:"credentials_file" toml:"credentials_file"`
	TokenFile       string `yaml:"token_file" toml:"token_file"`
	FolderID        string `yaml:"folder_id" toml:"folder_id"`
	AuthListenAddr  string `yaml:"auth_listen_addr" toml:"auth_listen_addr"`
}

type PrinterConfig struct {
	Name     string `yaml:"name" toml:"name"` // empty selects the OS default
	DPI      int    `yaml:"dpi" toml:"dpi"`
	SpoolDir string `yaml:"spool_dir" toml:"spool_dir"`
}

type CameraConfig struct {
	Index          int `yaml:"index" toml:"index"`
	PreviewSeconds int `yaml:"preview_seconds" toml:"preview_seconds"`
	ProbeLimit     int `yaml:"probe_limit" toml:"probe_limit"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"`
}

type Config struct {
	ServerAddr      string         `yaml:"server_addr" toml:"server_addr"`
	WatchDir        string         `yaml:"watch_dir" toml:"watch_dir"`
	CaptureDir      string         `yaml:"capture_dir" toml:"capture_dir"`
	LockFile        string         `yaml:"lock_file" toml:"lock_file"`
	ContinueOnError bool           `yaml:"continue_on_error" toml:"continue_on_error"`
	Database        DatabaseConfig `yaml:"database" toml:"database"`
	Kafka           KafkaConfig    `yaml:"kafka" toml:"kafka"`
	Drive           DriveConfig    `yaml:"drive" toml:"drive"`
	Printer         PrinterConfig  `yaml:"printer" toml:"printer"`
	Camera          CameraConfig   `yaml:"camera" toml:"camera"`
	Log             LogConfig      `yaml:"log" toml:"log"`
}

// Default returns a configuration usable without any file. Database values
// match the fixed constants the gallery has always shipped with.
func Default() Config {
	return Config{
		ServerAddr: "127.0.0.1:8080",
		CaptureDir: ".",
		LockFile:   filepath.Join(os.TempDir(), "picbrand.lock"),
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "127.0.0.1",
			User:     "usuario",
			Password: "senha",
			Name:     "teste",
		},
		Kafka: KafkaConfig{
			EventsTopic: "picbrand.events",
			IngestTopic: "picbrand.ingest",
			GroupID:     "picbrand-ingest-group",
		},
		Drive: DriveConfig{
			CredentialsFile: "client_secrets.json",
			TokenFile:       "drive_token.json",
			AuthListenAddr:  "127.0.0.1:8090",
		},
		Printer: PrinterConfig{
			DPI:      150,
			SpoolDir: os.TempDir(),
		},
		Camera: CameraConfig{
			PreviewSeconds: 6,
			ProbeLimit:     5,
		},
		Log: LogConfig{
			Level: "info",
			File:  "app.log",
		},
	}
}

// LoadConfig reads a YAML or TOML file on top of Default and then applies
// PICBRAND_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	const op = "models.LoadConfig"

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			err = toml.Unmarshal(data, &cfg)
		default:
			err = yaml.Unmarshal(data, &cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: parse %s: %w", op, path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("PICBRAND_SERVER_ADDR", &cfg.ServerAddr)
	str("PICBRAND_WATCH_DIR", &cfg.WatchDir)
	str("PICBRAND_DB_DRIVER", &cfg.Database.Driver)
	str("PICBRAND_DB_HOST", &cfg.Database.Host)
	str("PICBRAND_DB_USER", &cfg.Database.User)
	str("PICBRAND_DB_PASSWORD", &cfg.Database.Password)
	str("PICBRAND_DB_NAME", &cfg.Database.Name)
	str("PICBRAND_DB_DSN", &cfg.Database.DSN)
	str("PICBRAND_DRIVE_FOLDER_ID", &cfg.Drive.FolderID)
	str("PICBRAND_PRINTER", &cfg.Printer.Name)
	str("PICBRAND_LOG_LEVEL", &cfg.Log.Level)
	str("PICBRAND_LOG_FILE", &cfg.Log.File)

	if v, ok := lookup("PICBRAND_DB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PICBRAND_DB_PORT: %w", err)
		}
		cfg.Database.Port = port
	}
	if v, ok := lookup("PICBRAND_KAFKA_BROKERS"); ok && v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		cfg.Kafka.Brokers = brokers
	}
	return nil
}
