package container

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/yusufsyaifudin/emailer/backend/begmail"
	"github.com/yusufsyaifudin/emailer/backend/beses"
	"github.com/yusufsyaifudin/emailer/backend/besmtp"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "config.yml"

// ConfigHTTPServer struct for HTTP ConfigTransport configuration
type ConfigHTTPServer struct {
	Port int `yaml:"port" validate:"required,min=1,max=65535"`
}

// ConfigTransport is a configuration for Admin ConfigTransport: HTTP, gRPC or anything
type ConfigTransport struct {
	HTTP ConfigHTTPServer `yaml:"http"`
}

type ConfigRedis struct {
	Mode       string   `yaml:"mode" validate:"required,oneof=single sentinel cluster"`
	Address    []string `yaml:"address" validate:"required,min=1"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	DB         int      `yaml:"db"`
	MasterName string   `yaml:"masterName" validate:"required_if=Mode sentinel"`
	KeyPrefix  string   `yaml:"keyPrefix"`
}

type ConfigMemory struct {
	SnapshotFile string `yaml:"snapshotFile"`
}

// ConfigCache puts a fastcache read cache in front of redis or postgres.
// Keep it disabled when more than one process writes into the same storage.
type ConfigCache struct {
	Enabled  bool `yaml:"enabled"`
	MaxBytes int  `yaml:"maxBytes" validate:"min=0"`
}

type ConfigGoSqlDb struct {
	Debug        bool   `yaml:"debug"`
	DSN          string `yaml:"dsn" validate:"required"` // Data Source Name
	MaxOpenConns int    `yaml:"maxOpenConns"`
	MaxIdleConns int    `yaml:"maxIdleConns"`
}

// ConfigStorage selects where recipients, headers and checker emails are persisted.
type ConfigStorage struct {
	Driver    string `yaml:"driver" validate:"required,oneof=redis memory postgres"`
	Namespace string `yaml:"namespace" validate:"required,alphanum"`

	Redis    *ConfigRedis   `yaml:"redis" validate:"required_if=Driver redis"`
	Memory   ConfigMemory   `yaml:"memory"`
	Postgres *ConfigGoSqlDb `yaml:"postgres" validate:"required_if=Driver postgres"`
	Cache    ConfigCache    `yaml:"cache"`
}

type ConfigNoop struct {
	Email string `yaml:"email" validate:"required,simplemail"`
	Name  string `yaml:"name"`
}

// ConfigBackends only registers backend which section is not empty.
type ConfigBackends struct {
	Active string `yaml:"active" validate:"required,oneof=gmail smtp ses noop"`

	Gmail *begmail.Config   `yaml:"gmail"`
	SMTP  *besmtp.Credential `yaml:"smtp"`
	SES   *beses.Config      `yaml:"ses"`
	Noop  *ConfigNoop        `yaml:"noop"`
}

type ConfigGotenberg struct {
	URL     string        `yaml:"url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ConfigRenderer struct {
	Driver    string           `yaml:"driver" validate:"required,oneof=gotenberg noop"`
	Gotenberg *ConfigGotenberg `yaml:"gotenberg" validate:"required_if=Driver gotenberg"`
}

type ConfigCampaign struct {
	// Delay nil means default one second, explicit 0s disables the pause.
	Delay            *time.Duration `yaml:"delay"`
	RotationInterval int            `yaml:"rotationInterval" validate:"min=0"`
}

type ConfigTracing struct {
	JaegerEndpoint string `yaml:"jaegerEndpoint" validate:"omitempty,url"`
	Environment    string `yaml:"environment"`
}

// Config contains application config
type Config struct {
	Transport ConfigTransport `yaml:"transport"`
	Storage   ConfigStorage   `yaml:"storage"`
	Backends  ConfigBackends  `yaml:"backends"`
	Renderer  ConfigRenderer  `yaml:"renderer"`
	Campaign  ConfigCampaign  `yaml:"campaign"`
	Tracing   ConfigTracing   `yaml:"tracing"`
}

// LoadConfig reads YAML file, fill defaults and validates it.
// Empty fileName means config.yml in working directory.
func LoadConfig(fileName string) (cfg Config, err error) {
	if fileName == "" {
		fileName = DefaultConfigFile
	}

	fileContent, err := os.ReadFile(fileName)
	if err != nil {
		err = fmt.Errorf("error read file config %s: %w", fileName, err)
		return
	}

	cfg, err = ParseConfig(fileContent)
	if err != nil {
		err = fmt.Errorf("config %s: %w", fileName, err)
		return
	}

	return
}

// ParseConfig is LoadConfig without reading the file.
func ParseConfig(content []byte) (cfg Config, err error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(false)
	err = dec.Decode(&cfg)
	if err != nil {
		err = fmt.Errorf("error decode yaml: %w", err)
		return
	}

	cfg.setDefault()

	err = validator.Validate(cfg)
	if err != nil {
		err = fmt.Errorf("invalid config: %w", err)
		return
	}

	return
}

func (c *Config) setDefault() {
	if c.Transport.HTTP.Port == 0 {
		c.Transport.HTTP.Port = 8080
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}

	if c.Storage.Namespace == "" {
		c.Storage.Namespace = "emailer"
	}

	if c.Renderer.Driver == "" {
		c.Renderer.Driver = "noop"
	}

	if c.Campaign.RotationInterval == 0 {
		c.Campaign.RotationInterval = 10
	}
}

// CampaignDelay returns the configured pause between two messages.
func (c Config) CampaignDelay() time.Duration {
	if c.Campaign.Delay == nil {
		return time.Second
	}

	return *c.Campaign.Delay
}
