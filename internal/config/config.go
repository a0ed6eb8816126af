package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the agent orchestration service.
type Config struct {
	Port        int
	Version     string
	LogLevel    string
	ProjectName string
	AWSRegion   string

	Params    ParamsConfig
	Templates TemplatesConfig
	Stacks    StacksConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
}

// ParamsConfig selects and configures the parameter store backend.
type ParamsConfig struct {
	// Backend is one of "memory", "ssm", "vault".
	Backend  string
	KMSKeyID string
	// DataDir enables JSON snapshots for the memory backend.
	DataDir string
	Vault   VaultConfig
}

type VaultConfig struct {
	Address   string
	Token     string
	Namespace string
	Mount     string
}

// TemplatesConfig locates the stack template. S3Bucket wins over Dir.
type TemplatesConfig struct {
	Dir      string
	S3Bucket string
	S3Prefix string
	Key      string
}

type StacksConfig struct {
	// Provisioner is "cloudformation" or "simulator".
	Provisioner   string
	ManagedBy     string
	PollInterval  time.Duration
	CreateTimeout time.Duration
	UpdateTimeout time.Duration
	DeleteTimeout time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type AuthConfig struct {
	// APIKeys enables API key checks on /api/v1 when non-empty.
	APIKeys []string
}

// EnvPrefix prefixes every environment override: AGENT_PORT,
// AGENT_PARAMS_BACKEND, AGENT_STACKS_POLL_INTERVAL, ...
const EnvPrefix = "AGENT"

// ConfigEnv names an explicit config file.
const ConfigEnv = "AGENT_CONFIG"

// NewViper returns a viper instance with defaults and environment bindings.
// Callers may bind CLI flags onto it before calling FromViper.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("version", "0.1.0")
	v.SetDefault("log_level", "info")
	v.SetDefault("project_name", "agents")
	v.SetDefault("aws.region", "")

	v.SetDefault("params.backend", "memory")
	v.SetDefault("params.kms_key_id", "")
	v.SetDefault("params.data_dir", "")
	v.SetDefault("params.vault.address", "")
	v.SetDefault("params.vault.token", "")
	v.SetDefault("params.vault.namespace", "")
	v.SetDefault("params.vault.mount", "secret")

	v.SetDefault("templates.dir", "templates")
	v.SetDefault("templates.s3_bucket", "")
	v.SetDefault("templates.s3_prefix", "")
	v.SetDefault("templates.key", "agent-stack.yaml")

	v.SetDefault("stacks.provisioner", "cloudformation")
	v.SetDefault("stacks.managed_by", "")
	v.SetDefault("stacks.poll_interval", 10*time.Second)
	v.SetDefault("stacks.create_timeout", 30*time.Minute)
	v.SetDefault("stacks.update_timeout", 30*time.Minute)
	v.SetDefault("stacks.delete_timeout", 20*time.Minute)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.service_name", "agent-orchestrator")

	v.SetDefault("auth.api_keys", "")

	// Conventional variables from the AWS, Vault and OTel tooling.
	_ = v.BindEnv("aws.region", "AGENT_AWS_REGION", "AWS_REGION", "AWS_DEFAULT_REGION")
	_ = v.BindEnv("params.vault.address", "AGENT_PARAMS_VAULT_ADDRESS", "VAULT_ADDR")
	_ = v.BindEnv("params.vault.token", "AGENT_PARAMS_VAULT_TOKEN", "VAULT_TOKEN")
	_ = v.BindEnv("params.vault.namespace", "AGENT_PARAMS_VAULT_NAMESPACE", "VAULT_NAMESPACE")
	_ = v.BindEnv("telemetry.enabled", "AGENT_TELEMETRY_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.otlp_endpoint", "AGENT_TELEMETRY_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("telemetry.service_name", "AGENT_TELEMETRY_SERVICE_NAME", "OTEL_SERVICE_NAME")
	return v
}

// ReadConfigFile loads explicitPath, else AGENT_CONFIG, else config.yaml
// from the working directory or /etc/agent-orchestrator when present. A
// missing default file is not an error; a missing explicit file is.
func ReadConfigFile(v *viper.Viper, explicitPath string) error {
	if explicitPath == "" {
		explicitPath = os.Getenv(ConfigEnv)
	}
	if path := explicitPath; path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/agent-orchestrator")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load reads the config file (if any) and the environment.
func Load() (*Config, error) {
	v := NewViper()
	if err := ReadConfigFile(v, ""); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper builds and validates a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        v.GetInt("port"),
		Version:     v.GetString("version"),
		LogLevel:    v.GetString("log_level"),
		ProjectName: v.GetString("project_name"),
		AWSRegion:   v.GetString("aws.region"),
		Params: ParamsConfig{
			Backend:  strings.ToLower(v.GetString("params.backend")),
			KMSKeyID: v.GetString("params.kms_key_id"),
			DataDir:  v.GetString("params.data_dir"),
			Vault: VaultConfig{
				Address:   v.GetString("params.vault.address"),
				Token:     v.GetString("params.vault.token"),
				Namespace: v.GetString("params.vault.namespace"),
				Mount:     v.GetString("params.vault.mount"),
			},
		},
		Templates: TemplatesConfig{
			Dir:      v.GetString("templates.dir"),
			S3Bucket: v.GetString("templates.s3_bucket"),
			S3Prefix: v.GetString("templates.s3_prefix"),
			Key:      v.GetString("templates.key"),
		},
		Stacks: StacksConfig{
			Provisioner:   strings.ToLower(v.GetString("stacks.provisioner")),
			ManagedBy:     v.GetString("stacks.managed_by"),
			PollInterval:  v.GetDuration("stacks.poll_interval"),
			CreateTimeout: v.GetDuration("stacks.create_timeout"),
			UpdateTimeout: v.GetDuration("stacks.update_timeout"),
			DeleteTimeout: v.GetDuration("stacks.delete_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("telemetry.enabled"),
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
			ServiceName:  v.GetString("telemetry.service_name"),
		},
		Auth: AuthConfig{
			APIKeys: splitList(v.Get("auth.api_keys")),
		},
	}
	if cfg.Stacks.ManagedBy == "" {
		cfg.Stacks.ManagedBy = cfg.ProjectName
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerations and required combinations.
func (c *Config) Validate() error {
	var errs []error
	if c.ProjectName == "" {
		errs = append(errs, errors.New("project_name is required"))
	}
	switch c.Params.Backend {
	case "memory", "ssm":
	case "vault":
		if c.Params.Vault.Address == "" {
			errs = append(errs, errors.New("params.vault.address is required for the vault backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("params.backend %q: want memory, ssm or vault", c.Params.Backend))
	}
	switch c.Stacks.Provisioner {
	case "cloudformation", "simulator":
	default:
		errs = append(errs, fmt.Errorf("stacks.provisioner %q: want cloudformation or simulator", c.Stacks.Provisioner))
	}
	if c.Stacks.PollInterval <= 0 {
		errs = append(errs, errors.New("stacks.poll_interval must be positive"))
	}
	if c.Templates.S3Bucket == "" && c.Templates.Dir == "" {
		errs = append(errs, errors.New("one of templates.dir or templates.s3_bucket is required"))
	}
	return errors.Join(errs...)
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.Params.Backend == "ssm" || c.Stacks.Provisioner == "cloudformation" || c.Templates.S3Bucket != ""
}

// splitList accepts a YAML list or a comma separated string.
func splitList(v any) []string {
	var raw []string
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			raw = append(raw, fmt.Sprint(item))
		}
	case []string:
		raw = x
	case string:
		raw = strings.Split(x, ",")
	}
	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
