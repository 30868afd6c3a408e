package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"
)

// Config holds all locator settings, populated from environment variables
// with an optional YAML file providing defaults.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Location hardware.
	GPSSource     string // demo, nmea, replay, none
	GPSPort       string
	GPSBaudRate   int
	GPSReplayFile string
	GPSMode       string // off, battery, high

	// ResolutionPolicy selects the settings resolution UI: prompt, accept, decline.
	ResolutionPolicy string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Kafka fix publishing.
	KafkaEnabled  bool
	KafkaBrokers  []string
	KafkaFixTopic string
}

// fileConfig mirrors the subset of Config that may come from LOCATOR_CONFIG_FILE.
type fileConfig struct {
	HTTPAddr   string `yaml:"http_addr"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
	Resolution string `yaml:"resolution_policy"`
	GPS        struct {
		Source     string `yaml:"source"`
		PortPath   string `yaml:"port_path"`
		BaudRate   int    `yaml:"baud_rate"`
		ReplayFile string `yaml:"replay_file"`
		Mode       string `yaml:"mode"`
	} `yaml:"gps"`
	Mapbox struct {
		Timeout   string `yaml:"timeout"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"mapbox"`
	Kafka struct {
		Brokers string `yaml:"brokers"`
		Topic   string `yaml:"topic"`
	} `yaml:"kafka"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	file, err := loadFile(os.Getenv("LOCATOR_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeoutStr := sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", or(file.Mapbox.Timeout, "5s"))
	mapboxTimeout, err2 := time.ParseDuration(mapboxTimeoutStr)
	if err2 != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	baudRate, err := parsePositiveInt("GPS_BAUD_RATE", file.GPS.BaudRate, 9600)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	kafkaEnabled := os.Getenv("KAFKA_ENABLED") == "true"

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", or(file.HTTPAddr, ":8080")),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", or(file.LogLevel, "info")),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", or(file.LogFormat, "json")),
		ShutdownTimeout: shutdownTimeout,

		GPSSource:     sharedcfg.EnvOrDefault("GPS_SOURCE", or(file.GPS.Source, "demo")),
		GPSPort:       sharedcfg.EnvOrDefault("GPS_PORT", file.GPS.PortPath),
		GPSBaudRate:   baudRate,
		GPSReplayFile: sharedcfg.EnvOrDefault("GPS_REPLAY_FILE", file.GPS.ReplayFile),
		GPSMode:       sharedcfg.EnvOrDefault("GPS_MODE", or(file.GPS.Mode, "high")),

		ResolutionPolicy: sharedcfg.EnvOrDefault("RESOLUTION_POLICY", or(file.Resolution, "prompt")),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(file.Mapbox.CacheSize),

		KafkaEnabled:  kafkaEnabled,
		KafkaBrokers:  sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", or(file.Kafka.Brokers, "localhost:9092"))),
		KafkaFixTopic: sharedcfg.EnvOrDefault("KAFKA_FIX_TOPIC", or(file.Kafka.Topic, "location-fixes")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.GPSSource {
	case "demo", "none":
	case "nmea":
		if c.GPSPort == "" {
			return errors.New("GPS_SOURCE is nmea but GPS_PORT is not set")
		}
	case "replay":
		if c.GPSReplayFile == "" {
			return errors.New("GPS_SOURCE is replay but GPS_REPLAY_FILE is not set")
		}
	default:
		return fmt.Errorf("invalid GPS_SOURCE %q", c.GPSSource)
	}

	switch c.GPSMode {
	case "off", "battery", "high":
	default:
		return fmt.Errorf("invalid GPS_MODE %q", c.GPSMode)
	}

	switch c.ResolutionPolicy {
	case "prompt", "accept", "decline":
	default:
		return fmt.Errorf("invalid RESOLUTION_POLICY %q", c.ResolutionPolicy)
	}

	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if c.KafkaEnabled && c.KafkaFixTopic == "" {
		return errors.New("KAFKA_FIX_TOPIC is required")
	}
	return nil
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read LOCATOR_CONFIG_FILE: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse LOCATOR_CONFIG_FILE %s: %w", path, err)
	}
	return fc, nil
}

func parsePositiveInt(key string, fileVal, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		if fileVal > 0 {
			return fileVal, nil
		}
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseMapboxCacheSize(fileVal int) int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	if fileVal > 0 {
		return fileVal
	}
	return 1000
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
