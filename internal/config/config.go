package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lherron/lkmig/internal/remap"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	APIHost            string        `yaml:"api_host"`
	APIPort            int           `yaml:"api_port"`
	APIEndpoint        string        `yaml:"api_endpoint"`
	ClientID           string        `yaml:"client_id"`
	ClientSecret       string        `yaml:"client_secret"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`

	NamePrefix string      `yaml:"name_prefix"`
	SpaceRemap remap.Table `yaml:"space_remap"`
	ModelRemap remap.Table `yaml:"model_remap"`

	DataDir    string `yaml:"data_dir"`
	InputFile  string `yaml:"input_file"`
	LedgerPath string `yaml:"ledger_path"`
	LogLevel   string `yaml:"log_level"`
	LogJSON    bool   `yaml:"log_json"`
	Output     string `yaml:"output"`
	Parallel   int    `yaml:"parallel"`

	ProjectName             string            `yaml:"project_name"`
	Models                  []string          `yaml:"models"`
	Explores                remap.Table       `yaml:"explores"`
	Dashboards              remap.Table       `yaml:"dashboards"`
	DefaultFilters          DefaultFilters    `yaml:"default_filters"`
	DashboardDefaultFilters map[string]string `yaml:"dashboard_default_filters"`
	AttributeLimit          int               `yaml:"attribute_limit"`
	FastExploreCheck        Flag              `yaml:"fast_explore_check"`
	TestHiddenExplores      Flag              `yaml:"test_hidden_explores"`
	ServerVersion           string            `yaml:"server_version"`

	// Property-file spellings accepted for compatibility.
	LegacyClientID     string `yaml:"ClientID"`
	LegacyClientSecret string `yaml:"ClientSecret"`
	LegacyDataDir      string `yaml:"data_directory"`
	LegacyLogLevel     string `yaml:"debug_level"`

	// Path of the YAML file that was loaded, if any.
	Source string `yaml:"-"`
}

// Flag is a boolean that also accepts the quoted "True"/"False" strings
// found in JSON property files.
type Flag bool

func (f *Flag) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a boolean", node.Line)
	}
	b, err := strconv.ParseBool(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: invalid boolean %q", node.Line, node.Value)
	}
	*f = Flag(b)
	return nil
}

// DefaultFilters holds filter values applied to generated explore queries.
// A scalar entry applies to any query selecting that field; a mapping entry
// is keyed by explore name and applies to every query on that explore.
type DefaultFilters struct {
	Fields   map[string]string
	Explores map[string]map[string]string
}

func (d *DefaultFilters) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: default_filters must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		switch value.Kind {
		case yaml.MappingNode:
			var m map[string]string
			if err := value.Decode(&m); err != nil {
				return fmt.Errorf("default_filters.%s: %w", key, err)
			}
			if d.Explores == nil {
				d.Explores = make(map[string]map[string]string)
			}
			d.Explores[key] = m
		case yaml.ScalarNode:
			if d.Fields == nil {
				d.Fields = make(map[string]string)
			}
			d.Fields[key] = value.Value
		default:
			return fmt.Errorf("line %d: default_filters.%s must be a string or mapping", value.Line, key)
		}
	}
	return nil
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables (LKMIG_*)
// 2. ./.env.local (dotenv) - walks up parent directories to find it
// 3. YAML file: path, else $LKMIG_CONFIG, else ~/.config/lkmig/config.yaml
//
// JSON property files are valid YAML and load the same way.
func Load(path string) (*Config, error) {
	cfg := &Config{
		APIEndpoint:        "api/3.1",
		RequestTimeout:     60 * time.Second,
		LogLevel:           "info",
		Output:             "table",
		Parallel:           1,
		AttributeLimit:     10000,
		TestHiddenExplores: true,
		ServerVersion:      "5.16",
	}

	// Load .env.local if it exists (walking up parent directories)
	if envPath := findEnvLocal(); envPath != "" {
		_ = godotenv.Load(envPath)
	}

	explicit := path != ""
	if !explicit {
		path = os.Getenv("LKMIG_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(homeDir, ".config", "lkmig", "config.yaml")
		}
	}
	if path != "" {
		if err := loadYAMLConfig(cfg, path); err != nil {
			// The default file is optional
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		} else {
			cfg.Source = path
		}
	}
	cfg.applyLegacy()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	if cfg.LedgerPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.LedgerPath = filepath.Join(homeDir, ".local", "share", "lkmig", "ledger.db")
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}

	return cfg, nil
}

func loadYAMLConfig(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyLegacy() {
	if c.ClientID == "" {
		c.ClientID = c.LegacyClientID
	}
	if c.ClientSecret == "" {
		c.ClientSecret = c.LegacyClientSecret
	}
	if c.DataDir == "" {
		c.DataDir = c.LegacyDataDir
	}
	if c.LegacyLogLevel != "" && c.LogLevel == "info" {
		c.LogLevel = c.LegacyLogLevel
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LKMIG_API_HOST"); v != "" {
		c.APIHost = v
	}
	if v := os.Getenv("LKMIG_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LKMIG_API_PORT: invalid port %q", v)
		}
		c.APIPort = port
	}
	if v := os.Getenv("LKMIG_API_ENDPOINT"); v != "" {
		c.APIEndpoint = v
	}
	if v := getEnvOrFile("LKMIG_CLIENT_ID", "LKMIG_CLIENT_ID_FILE"); v != "" {
		c.ClientID = v
	}
	if v := getEnvOrFile("LKMIG_CLIENT_SECRET", "LKMIG_CLIENT_SECRET_FILE"); v != "" {
		c.ClientSecret = v
	}
	if v := os.Getenv("LKMIG_INSECURE_SKIP_VERIFY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LKMIG_INSECURE_SKIP_VERIFY: invalid boolean %q", v)
		}
		c.InsecureSkipVerify = b
	}
	if v := os.Getenv("LKMIG_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LKMIG_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	if v, ok := os.LookupEnv("LKMIG_NAME_PREFIX"); ok {
		c.NamePrefix = v
	}
	if v := os.Getenv("LKMIG_SPACE_REMAP"); v != "" {
		t, err := parseTable(v)
		if err != nil {
			return fmt.Errorf("LKMIG_SPACE_REMAP: %w", err)
		}
		c.SpaceRemap = t
	}
	if v := os.Getenv("LKMIG_MODEL_REMAP"); v != "" {
		t, err := parseTable(v)
		if err != nil {
			return fmt.Errorf("LKMIG_MODEL_REMAP: %w", err)
		}
		c.ModelRemap = t
	}
	if v := os.Getenv("LKMIG_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LKMIG_LEDGER_PATH"); v != "" {
		c.LedgerPath = v
	}
	if v := os.Getenv("LKMIG_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LKMIG_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("LKMIG_PARALLEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LKMIG_PARALLEL: invalid number %q", v)
		}
		c.Parallel = n
	}
	if v := os.Getenv("LKMIG_SERVER_VERSION"); v != "" {
		c.ServerVersion = v
	}
	return nil
}

// parseTable reads a remap table from a YAML flow mapping such as
// `{"Sales": "Sales_TenantX", "": "Shared"}`.
func parseTable(s string) (remap.Table, error) {
	var t remap.Table
	if err := yaml.Unmarshal([]byte(s), &t); err != nil {
		return nil, err
	}
	return t, nil
}

// BaseURL returns the API root built from api_host, api_port and
// api_endpoint, always ending in "/".
func (c *Config) BaseURL() (string, error) {
	if c.APIHost == "" {
		return "", errors.New("api_host is not configured")
	}
	host := strings.TrimRight(c.APIHost, "/")
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("api_host: %w", err)
	}
	if c.APIPort > 0 && u.Port() == "" {
		u.Host = fmt.Sprintf("%s:%d", u.Host, c.APIPort)
	}
	endpoint := strings.Trim(c.APIEndpoint, "/")
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	if endpoint != "" {
		u.Path += endpoint + "/"
	}
	return u.String(), nil
}

// RequireAPI checks that everything needed to log in is present.
func (c *Config) RequireAPI() error {
	var missing []string
	if c.APIHost == "" {
		missing = append(missing, "api_host")
	}
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	return ""
}

// findEnvLocal searches for .env.local starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env.local if found, empty string otherwise.
func findEnvLocal() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if _, err := os.Stat(".env.local"); err == nil {
			return ".env.local"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env.local")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		if dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}
