// Package config loads the INI configuration file and resolves it into typed
// job specifications.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nestbackup/nestbackup/internal/models"
	"gopkg.in/ini.v1"
)

// EnvConfigPath overrides the default configuration file location.
const EnvConfigPath = "NESTBACKUP_CONFIG"

// ConfigurationError reports an invalid or missing option. It aborts the run
// before any job executes.
type ConfigurationError struct {
	Section string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Section == "" {
		return "invalid config: " + e.Reason
	}
	return fmt.Sprintf("invalid config in section [%s]: %s", e.Section, e.Reason)
}

func confErr(section, format string, args ...any) error {
	return &ConfigurationError{Section: section, Reason: fmt.Sprintf(format, args...)}
}

// Config is the resolved configuration: one JobSpec per section, in file
// order.
type Config struct {
	Jobs []models.JobSpec
}

// DefaultPath returns the configuration file location: the EnvConfigPath
// environment variable when set, otherwise ~/backup.ini.
func DefaultPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "backup.ini"
	}
	return filepath.Join(home, "backup.ini")
}

// Options every section may carry, directly or inherited from DEFAULT.
var baseOptions = map[string]bool{
	"job":                   true,
	"aws_access_key_id":     true,
	"aws_secret_access_key": true,
	"endpoint_url":          true,
	"bucket":                true,
	"hostname":              true,
	"remote_path":           true,
}

// Kind-specific options.
var kindOptions = map[models.JobKind]map[string]bool{
	models.JobSync: {
		"local_path":     true,
		"aws_extra_args": true,
	},
	models.JobDatabase: {
		"db_uri":    true,
		"retention": true,
	},
	models.JobSMTP: {
		"server":     true,
		"port":       true,
		"ssl":        true,
		"username":   true,
		"password":   true,
		"sender":     true,
		"recipients": true,
		"subject":    true,
	},
}

// Load reads and resolves the configuration file.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return resolve(file)
}

// LoadReader reads and resolves configuration from raw bytes (useful for
// testing).
func LoadReader(content []byte) (*Config, error) {
	file, err := ini.Load(content)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return resolve(file)
}

// resolve merges DEFAULT into every section once, up front, and builds the
// typed specs. No fallback lookups happen after this point.
func resolve(file *ini.File) (*Config, error) {
	defaults := file.Section(ini.DefaultSection).KeysHash()

	cfg := &Config{}
	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}

		merged := make(map[string]string, len(defaults)+len(section.Keys()))
		for k, v := range defaults {
			merged[k] = v
		}
		for k, v := range section.KeysHash() {
			merged[k] = v
		}

		spec, err := buildSpec(section.Name(), section.KeyStrings(), merged)
		if err != nil {
			return nil, err
		}
		cfg.Jobs = append(cfg.Jobs, *spec)
	}

	if len(cfg.Jobs) == 0 {
		return nil, confErr("", "no job sections defined")
	}
	return cfg, nil
}

// buildSpec turns one merged section into a JobSpec. ownKeys are the keys set
// explicitly in the section (not inherited), which is what the unknown-option
// check applies to: DEFAULT may carry options that only some kinds consume.
func buildSpec(name string, ownKeys []string, merged map[string]string) (*models.JobSpec, error) {
	kindValue, ok := merged["job"]
	if !ok || kindValue == "" {
		return nil, confErr(name, "missing required option 'job'")
	}

	kind := models.JobKind(kindValue)
	allowed := kindOptions[kind]
	if allowed == nil {
		return nil, confErr(name, "unknown job type %q (must be sync, database or smtp)", kindValue)
	}

	for _, key := range ownKeys {
		if !baseOptions[key] && !allowed[key] {
			return nil, confErr(name, "unknown option %q for job type %q", key, kindValue)
		}
	}

	hostname := merged["hostname"]
	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("determining hostname: %w", err)
		}
		hostname = h
	}

	spec := &models.JobSpec{
		Name:     name,
		Kind:     kind,
		Hostname: hostname,
		Bucket:   merged["bucket"],
		Creds: models.Credentials{
			AccessKeyID:     merged["aws_access_key_id"],
			SecretAccessKey: merged["aws_secret_access_key"],
			EndpointURL:     merged["endpoint_url"],
		},
	}

	switch kind {
	case models.JobSync:
		return spec, buildSync(spec, merged)
	case models.JobDatabase:
		return spec, buildDatabase(spec, merged)
	case models.JobSMTP:
		return spec, buildSMTP(spec, merged)
	}
	return nil, confErr(name, "unknown job type %q", kindValue)
}

func requireBucket(spec *models.JobSpec) error {
	if spec.Bucket == "" {
		return confErr(spec.Name, "missing required option 'bucket'")
	}
	return nil
}

func buildSync(spec *models.JobSpec, merged map[string]string) error {
	if err := requireBucket(spec); err != nil {
		return err
	}

	localPath := merged["local_path"]
	if localPath == "" {
		return confErr(spec.Name, "missing required option 'local_path'")
	}

	remotePath := merged["remote_path"]
	if remotePath == "" {
		remotePath = filepath.Base(localPath)
	}

	spec.Sync = &models.SyncSettings{
		LocalPath:  localPath,
		RemotePath: remotePath,
		ExtraArgs:  strings.Fields(merged["aws_extra_args"]),
	}
	return nil
}

func buildDatabase(spec *models.JobSpec, merged map[string]string) error {
	if err := requireBucket(spec); err != nil {
		return err
	}

	uri := merged["db_uri"]
	if uri == "" {
		return confErr(spec.Name, "missing required option 'db_uri'")
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return confErr(spec.Name, "malformed db_uri: %v", err)
	}

	engine := models.DatabaseEngine(parsed.Scheme)
	if engine != models.EnginePostgres && engine != models.EngineMySQL {
		return confErr(spec.Name, "unsupported database scheme %q", parsed.Scheme)
	}

	dbname := strings.TrimPrefix(parsed.Path, "/")
	if dbname == "" {
		return confErr(spec.Name, "db_uri is missing the database name")
	}

	settings := &models.DatabaseSettings{
		URI:      uri,
		Engine:   engine,
		Host:     parsed.Hostname(),
		Port:     parsed.Port(),
		Username: parsed.User.Username(),
		Database: dbname,
	}
	settings.Password, _ = parsed.User.Password()

	if raw := merged["retention"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return confErr(spec.Name, "retention must be an integer, got %q", raw)
		}
		settings.Retention = n
	}

	spec.Database = settings
	return nil
}

func buildSMTP(spec *models.JobSpec, merged map[string]string) error {
	server := merged["server"]
	if server == "" {
		return confErr(spec.Name, "missing required option 'server'")
	}

	port := 25
	if raw := merged["port"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return confErr(spec.Name, "port must be an integer, got %q", raw)
		}
		port = n
	}

	useSSL := false
	if raw := merged["ssl"]; raw != "" {
		v, err := parseBool(raw)
		if err != nil {
			return confErr(spec.Name, "ssl must be a boolean, got %q", raw)
		}
		useSSL = v
	}

	var recipients []string
	for _, r := range strings.Split(merged["recipients"], ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	if len(recipients) == 0 {
		return confErr(spec.Name, "missing required option 'recipients'")
	}

	sender := merged["sender"]
	if sender == "" {
		sender = merged["username"]
	}
	if sender == "" {
		return confErr(spec.Name, "one of 'sender' or 'username' is required")
	}

	subject := merged["subject"]
	if subject == "" {
		subject = "Backup report: " + spec.Hostname
	}

	spec.SMTP = &models.SMTPSettings{
		Server:     server,
		Port:       port,
		SSL:        useSSL,
		Username:   merged["username"],
		Password:   merged["password"],
		Sender:     sender,
		Recipients: recipients,
		Subject:    subject,
	}
	return nil
}

// parseBool accepts the INI-style spellings for booleans.
func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(raw)
}
