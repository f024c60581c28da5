package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vamu-rec/recommender-chat/internal/logging"
	"github.com/vamu-rec/recommender-chat/internal/services"
	"github.com/vamu-rec/recommender-chat/internal/session"
	"gopkg.in/yaml.v3"
)

const (
	transportLines       = "lines"
	transportEventSource = "eventsource"
)

type config struct {
	Port            string         `yaml:"port"`
	BaseURL         string         `yaml:"baseURL"`
	Transport       string         `yaml:"transport"`
	HistoryPageSize int            `yaml:"historyPageSize"`
	RequestTimeout  time.Duration  `yaml:"requestTimeout"`
	HealthInterval  time.Duration  `yaml:"healthInterval"`
	Log             logging.Config `yaml:"log"`
}

func defaultConfig() config {
	return config{
		Port:            "3000",
		BaseURL:         services.DefaultBaseURL,
		Transport:       transportLines,
		HistoryPageSize: 10,
		RequestTimeout:  10 * time.Second,
		HealthInterval:  30 * time.Second,
		Log: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	// The alias type drops this method so that decoding does not recurse; fields absent from the document
	// keep the defaults.
	type rawConfig config
	raw := rawConfig(defaultConfig())
	if err := value.Decode(&raw); err != nil {
		return err
	}

	raw.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	switch raw.Transport {
	case "":
		raw.Transport = transportLines
	case transportLines, transportEventSource:
	default:
		return fmt.Errorf("unknown transport: %s", raw.Transport)
	}

	if raw.HistoryPageSize <= 0 {
		return fmt.Errorf("historyPageSize must be positive, got %d", raw.HistoryPageSize)
	}
	if raw.RequestTimeout <= 0 {
		return fmt.Errorf("requestTimeout must be positive, got %s", raw.RequestTimeout)
	}
	if raw.HealthInterval <= 0 {
		return fmt.Errorf("healthInterval must be positive, got %s", raw.HealthInterval)
	}

	*c = config(raw)
	return nil
}

// loadConfig reads the YAML configuration from r. An empty document yields the defaults.
func loadConfig(r io.Reader) (config, error) {
	cfg := defaultConfig()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}

	if baseURL := os.Getenv("RECOMMENDER_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if cfg.BaseURL == "" {
		return config{}, errors.New("baseURL is required")
	}
	return cfg, nil
}

func (c config) decoder() session.Decoder {
	if c.Transport == transportEventSource {
		return services.EventDecoder{}
	}
	return services.LineDecoder{}
}
