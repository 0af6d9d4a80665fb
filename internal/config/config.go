// Package config loads the harvester settings and the repository list.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mkoziy/harvester/internal/ratelimit"
)

// Config holds all configuration for one harvester process.
type Config struct {
	Harvest Harvest `mapstructure:"harvest"`
	Export  Export  `mapstructure:"export"`
	DB      DB      `mapstructure:"db"`
	Logging Logging `mapstructure:"logging"`
	Lock    Lock    `mapstructure:"lock"`
	Metrics Metrics `mapstructure:"metrics"`

	RateLimits   ratelimit.SourceConfigs `mapstructure:"-"`
	Repositories []Repository            `mapstructure:"-"`
}

// Harvest holds run-wide defaults; each repository may override the policy knobs.
type Harvest struct {
	UpdateLogAfterNumItems  int           `mapstructure:"update_log_after_numitems"`
	AbortAfterNumErrors     int           `mapstructure:"abort_after_numerrors"`
	RecordRefreshDays       int           `mapstructure:"record_refresh_days"`
	RepoRefreshDays         int           `mapstructure:"repo_refresh_days"`
	MaxRecordsUpdatedPerRun int           `mapstructure:"max_records_updated_per_run"`
	TempFilepath            string        `mapstructure:"temp_filepath"`
	LastRunFile             string        `mapstructure:"last_run_file"`
	Concurrency             int           `mapstructure:"concurrency"`
	HTTPTimeout             time.Duration `mapstructure:"http_timeout"`
}

type Export struct {
	Filepath    string `mapstructure:"export_filepath"`
	FileLimitMB int    `mapstructure:"export_file_limit_mb"`
	Format      string `mapstructure:"export_format"`
}

// DB selects and addresses the metadata store backend.
type DB struct {
	Type          string `mapstructure:"type"`
	DBName        string `mapstructure:"dbname"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"pass"`
	SSLMode       string `mapstructure:"sslmode"`
	Debug         bool   `mapstructure:"debug"`
	MigrationsDir string `mapstructure:"migrations_dir"`
	MaxOpenConns  int    `mapstructure:"max_open_conns"`
}

type Logging struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Filename string `mapstructure:"filename"`
	Mail     Mail   `mapstructure:"mail"`
}

// Mail configures where error alerts are sent; an empty Host disables mail.
type Mail struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	Subject  string   `mapstructure:"subject"`
}

type Lock struct {
	Path string `mapstructure:"path"`
}

type Metrics struct {
	Textfile string `mapstructure:"textfile"`
}

// Repository is one entry of the repository list.
type Repository struct {
	Name              string `mapstructure:"name"`
	URL               string `mapstructure:"url"`
	Set               string `mapstructure:"set"`
	Type              string `mapstructure:"type"`
	Thumbnail         string `mapstructure:"thumbnail"`
	ItemURLPattern    string `mapstructure:"item_url_pattern"`
	Enabled           *bool  `mapstructure:"enabled"`
	CopyErrorsToEmail *bool  `mapstructure:"copyerrorstoemail"`

	MetadataPrefix string `mapstructure:"metadataprefix"`
	APIKey         string `mapstructure:"api_key"`
	Collection     string `mapstructure:"collection"`
	Query          string `mapstructure:"query"`
	PageSize       int    `mapstructure:"page_size"`

	UpdateLogAfterNumItems  int `mapstructure:"update_log_after_numitems"`
	AbortAfterNumErrors     int `mapstructure:"abort_after_numerrors"`
	RecordRefreshDays       int `mapstructure:"record_refresh_days"`
	RepoRefreshDays         int `mapstructure:"repo_refresh_days"`
	MaxRecordsUpdatedPerRun int `mapstructure:"max_records_updated_per_run"`
}

// IsEnabled defaults to true when the flag is absent.
func (r Repository) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// AlertsEnabled reports whether errors for this repository reach the alert mail.
func (r Repository) AlertsEnabled() bool {
	return r.CopyErrorsToEmail == nil || *r.CopyErrorsToEmail
}

// ApplyDefaults fills unset policy knobs from the run-wide harvest section.
func (r *Repository) ApplyDefaults(h Harvest) {
	if r.UpdateLogAfterNumItems <= 0 {
		r.UpdateLogAfterNumItems = h.UpdateLogAfterNumItems
	}
	if r.AbortAfterNumErrors <= 0 {
		r.AbortAfterNumErrors = h.AbortAfterNumErrors
	}
	if r.RecordRefreshDays <= 0 {
		r.RecordRefreshDays = h.RecordRefreshDays
	}
	if r.RepoRefreshDays <= 0 {
		r.RepoRefreshDays = h.RepoRefreshDays
	}
	if r.MaxRecordsUpdatedPerRun <= 0 {
		r.MaxRecordsUpdatedPerRun = h.MaxRecordsUpdatedPerRun
	}
	if r.Name == "" {
		r.Name = r.URL
	}
}

// Validate rejects settings that must stop the process before any work starts.
func (c *Config) Validate() error {
	switch c.DB.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database type must be sqlite or postgres in config file (got %q)", c.DB.Type)
	}

	var errs []error
	for i, r := range c.Repositories {
		if r.URL == "" {
			errs = append(errs, fmt.Errorf("repos[%d]: url is required", i))
		}
		switch r.Type {
		case "oai", "ckan", "marklogic", "csw":
		default:
			errs = append(errs, fmt.Errorf("repos[%d] %q: unsupported type %q", i, r.Name, r.Type))
		}
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("harvest.update_log_after_numitems", 1000)
	v.SetDefault("harvest.abort_after_numerrors", 5)
	v.SetDefault("harvest.record_refresh_days", 30)
	v.SetDefault("harvest.repo_refresh_days", 1)
	v.SetDefault("harvest.max_records_updated_per_run", 400)
	v.SetDefault("harvest.temp_filepath", "temp")
	v.SetDefault("harvest.last_run_file", "data/last_run_timestamp")
	v.SetDefault("harvest.concurrency", 1)
	v.SetDefault("harvest.http_timeout", 60*time.Second)

	v.SetDefault("export.export_filepath", "data")
	v.SetDefault("export.export_file_limit_mb", 10)
	v.SetDefault("export.export_format", "gmeta")

	v.SetDefault("db.type", "sqlite")
	v.SetDefault("db.dbname", "data/globus-oai.db")
	v.SetDefault("db.host", "")
	v.SetDefault("db.port", 0)
	v.SetDefault("db.user", "")
	v.SetDefault("db.pass", "")
	v.SetDefault("db.sslmode", "")
	v.SetDefault("db.debug", false)
	v.SetDefault("db.migrations_dir", "")
	v.SetDefault("db.max_open_conns", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.filename", "")
	v.SetDefault("logging.mail.host", "")
	v.SetDefault("logging.mail.port", 25)
	v.SetDefault("logging.mail.username", "")
	v.SetDefault("logging.mail.password", "")
	v.SetDefault("logging.mail.from", "")
	v.SetDefault("logging.mail.to", []string{})
	v.SetDefault("logging.mail.subject", "Harvester errors")

	v.SetDefault("lock.path", "data/harvester.lock")
	v.SetDefault("metrics.textfile", "")
}

// Load reads the YAML config file and the JSON repository list.
// A .env file in the working directory is loaded first; HARVESTER_* environment
// variables override file values (HARVESTER_DB_PASS sets db.pass).
func Load(configPath, reposPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var raw []byte
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
		raw = data
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(raw) > 0 {
		limits, err := ratelimit.LoadSourceConfigs(raw)
		if err != nil {
			return nil, fmt.Errorf("decode rate_limits: %w", err)
		}
		cfg.RateLimits = limits
	}

	if reposPath != "" {
		repos, err := LoadRepositories(reposPath)
		if err != nil {
			return nil, err
		}
		cfg.Repositories = repos
	}
	for i := range cfg.Repositories {
		cfg.Repositories[i].ApplyDefaults(cfg.Harvest)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRepositories reads the "repos" array of a JSON repository list.
func LoadRepositories(path string) ([]Repository, error) {
	rv := viper.New()
	rv.SetConfigFile(path)
	rv.SetConfigType("json")
	if err := rv.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read repository list %s: %w", path, err)
	}
	var repos []Repository
	if err := rv.UnmarshalKey("repos", &repos); err != nil {
		return nil, fmt.Errorf("decode repository list %s: %w", path, err)
	}
	return repos, nil
}
