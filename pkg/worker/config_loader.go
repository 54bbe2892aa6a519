package worker

import (
	"os"
	"strings"

	"gitevents/internal"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Watermill SubscriberConfig `yaml:"watermill"`
	Rules     []struct {
		Emit internal.EmitList `yaml:"emit"`
	} `yaml:"rules"`
}

func loadFile(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadSubscriberConfig reads the watermill section of the receiver config file.
func LoadSubscriberConfig(path string) (SubscriberConfig, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return cfg.Watermill, err
	}
	applySubscriberDefaults(&cfg.Watermill)
	return cfg.Watermill, nil
}

// LoadTopicsFromConfig returns the distinct topics emitted by the configured rules.
func LoadTopicsFromConfig(path string) ([]string, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	topics := make([]string, 0, len(cfg.Rules))
	seen := make(map[string]struct{}, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		for _, topic := range rule.Emit {
			topic = strings.TrimSpace(topic)
			if topic == "" {
				continue
			}
			if _, ok := seen[topic]; ok {
				continue
			}
			seen[topic] = struct{}{}
			topics = append(topics, topic)
		}
	}
	return topics, nil
}

func applySubscriberDefaults(cfg *SubscriberConfig) {
	if cfg.Driver == "" && len(cfg.Drivers) == 0 {
		cfg.Driver = "gochannel"
	}
	if cfg.GoChannel.OutputChannelBuffer == 0 {
		cfg.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.NATS.ClientIDSuffix == "" {
		cfg.NATS.ClientIDSuffix = "-worker"
	}
	if cfg.ConnectAttempts == 0 {
		cfg.ConnectAttempts = 10
	}
	if cfg.ConnectDelayMS == 0 {
		cfg.ConnectDelayMS = 2000
	}
}
