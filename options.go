package utim

import (
	"fmt"
	"os"
	"strings"

	"github.com/golang-io/requests"
	"gopkg.in/yaml.v3"
)

// Connection protocols for the Uhost link.
const (
	ConnectionTypeMQTT  = "mqtt"  // paho client with the ack/retry layer
	ConnectionTypeUMQTT = "umqtt" // embedded client, raw
)

type Listen struct {
	URL string `yaml:"url"`
}

// MQTTConfig carries the broker parameters.
type MQTTConfig struct {
	Host          string `yaml:"host"`
	User          string `yaml:"user"`
	Pass          string `yaml:"pass"`
	ReconnectTime int    `yaml:"reconnect_time"` // seconds
}

// Config is the Utim/Uhost setting. Names are hex strings; MasterKey is the
// provisioning placeholder the SRP password derives from.
type Config struct {
	MQTT      MQTTConfig `yaml:"mqtt"`
	UtimName  string     `yaml:"utim_name"`
	UhostName string     `yaml:"uhost_name"`
	MasterKey string     `yaml:"master_key"`
	Protocol  string     `yaml:"protocol"`
	HTTP      Listen     `yaml:"http"`
}

// DefaultConfig mirrors the fielded defaults.
func DefaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Host:          "127.0.0.1",
			User:          "test",
			Pass:          "test",
			ReconnectTime: 60,
		},
		UtimName:  "7574696d",
		UhostName: "74657374",
		MasterKey: "6b6579",
		Protocol:  ConnectionTypeMQTT,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivityConfig, err)
	}
	if err := yaml.Unmarshal(b, config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectivityConfig, err)
	}
	if config.Protocol != ConnectionTypeMQTT && config.Protocol != ConnectionTypeUMQTT {
		return nil, fmt.Errorf("%w: protocol=%s", ErrConnectivityConfig, config.Protocol)
	}
	return config, nil
}

// Topic is the broker topic this utim listens on: its own name, uppercased.
func (c *Config) Topic() string {
	return strings.ToUpper(c.UtimName)
}

type Options struct {
	Config   *Config
	ClientID string
}

type Option func(*Options)

func newOptions(opts ...Option) Options {
	options := Options{
		Config:   DefaultConfig(),
		ClientID: "utim-" + requests.GenId(),
	}
	for _, o := range opts {
		o(&options)
	}
	return options
}

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(o *Options) {
		o.Config = config
	}
}

// ClientID overrides the generated broker client id.
func ClientID(id string) Option {
	return func(o *Options) {
		o.ClientID = id
	}
}
