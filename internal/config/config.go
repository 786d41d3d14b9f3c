// Package config loads and validates the PixieVeil settings file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/sirupsen/logrus"

	"github.com/mrsinham/pixieveil/internal/anonymize"
	"github.com/mrsinham/pixieveil/internal/dicomutil"
)

// Config is the root of the YAML settings file. Sections absent from the
// file keep the values from Default.
type Config struct {
	DICOMServer   DICOMServerConfig        `yaml:"dicom_server"`
	Storage       StorageConfig            `yaml:"storage"`
	Study         StudyConfig              `yaml:"study"`
	SeriesFilter  SeriesFilterConfig       `yaml:"series_filter"`
	Anonymization AnonymizationConfig      `yaml:"anonymization"`
	Profiles      map[string]ProfileConfig `yaml:"anonymization_profiles,omitempty"`
	HTTPServer    HTTPServerConfig         `yaml:"http_server"`
	Logging       LoggingConfig            `yaml:"logging"`
}

// DICOMServerConfig holds the SCP bind address and application entity
// identity.
type DICOMServerConfig struct {
	IP      string `yaml:"ip"`
	Port    int    `yaml:"port"`
	AETitle string `yaml:"ae_title"`
	// SOPClasses replaces the accepted storage SOP class UIDs when set.
	SOPClasses []string `yaml:"sop_classes,omitempty"`
}

// AcceptedSOPClasses returns the storage SOP class UIDs the server takes
// in, defaulting to CT, MR and secondary capture.
func (d DICOMServerConfig) AcceptedSOPClasses() []string {
	if len(d.SOPClasses) > 0 {
		return d.SOPClasses
	}
	return []string{
		dicomutil.CTImageStorage,
		dicomutil.MRImageStorage,
		dicomutil.SecondaryCaptureStorage,
	}
}

// StorageConfig holds the local roots and the optional upload endpoint.
type StorageConfig struct {
	BasePath      string              `yaml:"base_path"`
	TempPath      string              `yaml:"temp_path"`
	RemoteStorage RemoteStorageConfig `yaml:"remote_storage"`
}

// RemoteStorageConfig describes where completed archives are posted. An
// empty base URL disables uploads.
type RemoteStorageConfig struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	AuthToken string `yaml:"auth_token,omitempty"`
}

// StudyConfig controls when a study is considered complete. Both values
// are in seconds; a zero timeout closes a study on the next check.
type StudyConfig struct {
	CompletionTimeout       int `yaml:"completion_timeout"`
	CompletionCheckInterval int `yaml:"completion_check_interval"`
}

// Timeout returns the quiescence window as a duration.
func (s StudyConfig) Timeout() time.Duration {
	return time.Duration(s.CompletionTimeout) * time.Second
}

// CheckInterval returns the tracker period as a duration.
func (s StudyConfig) CheckInterval() time.Duration {
	return time.Duration(s.CompletionCheckInterval) * time.Second
}

// SeriesFilterConfig holds the drop predicate inputs.
type SeriesFilterConfig struct {
	ExcludeModalities  []string `yaml:"exclude_modalities,omitempty"`
	KeepOriginalSeries bool     `yaml:"keep_original_series"`
}

// AnonymizationConfig names the profile applied to every image.
type AnonymizationConfig struct {
	Default string `yaml:"default"`
}

// ProfileConfig is the raw body of one anonymisation profile: tag names
// mapped to action names, with the PixelBlackout, KeepPrivateTags and
// RetainStudyDate switches living in the same map.
type ProfileConfig map[string]any

// HTTPServerConfig holds the dashboard bind address.
type HTTPServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when the file names nothing else.
func Default() *Config {
	return &Config{
		DICOMServer: DICOMServerConfig{
			IP:      "0.0.0.0",
			Port:    11112,
			AETitle: "PIXIEVEIL",
		},
		Storage: StorageConfig{
			BasePath: "./storage",
		},
		Study: StudyConfig{
			CompletionTimeout:       120,
			CompletionCheckInterval: 30,
		},
		Anonymization: AnonymizationConfig{
			Default: anonymize.DefaultProfileName,
		},
		HTTPServer: HTTPServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first fatal problem in the configuration. It also
// settles the temp path, which defaults to a temp subtree under the
// studies root.
func (c *Config) Validate() error {
	if err := validatePort("dicom_server.port", c.DICOMServer.Port); err != nil {
		return err
	}
	if c.DICOMServer.AETitle == "" {
		return fmt.Errorf("dicom_server.ae_title must not be empty")
	}
	if len(c.DICOMServer.AETitle) > 16 {
		return fmt.Errorf("dicom_server.ae_title %q exceeds 16 characters", c.DICOMServer.AETitle)
	}
	if c.Storage.BasePath == "" {
		return fmt.Errorf("storage.base_path must not be empty")
	}
	if c.Storage.TempPath == "" {
		c.Storage.TempPath = filepath.Join(c.Storage.BasePath, "temp")
	}
	if u := c.Storage.RemoteStorage.BaseURL; u != "" {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("storage.remote_storage.base_url %q is not an absolute URL", u)
		}
	}
	if c.Study.CompletionTimeout < 0 {
		return fmt.Errorf("study.completion_timeout must not be negative")
	}
	if c.Study.CompletionCheckInterval <= 0 {
		return fmt.Errorf("study.completion_check_interval must be positive")
	}
	for name, raw := range c.Profiles {
		if _, err := buildProfile(name, raw); err != nil {
			return err
		}
	}
	if _, err := c.Profile(); err != nil {
		return err
	}
	if err := validatePort("http_server.port", c.HTTPServer.Port); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q is neither json nor text", c.Logging.Format)
	}
	return nil
}

// Profile resolves the profile named by anonymization.default. The
// built-in default applies when the file defines no profile of that name.
func (c *Config) Profile() (*anonymize.Profile, error) {
	name := c.Anonymization.Default
	if name == "" {
		name = anonymize.DefaultProfileName
	}
	raw, ok := c.Profiles[name]
	if !ok {
		if name == anonymize.DefaultProfileName {
			return anonymize.DefaultProfile(), nil
		}
		return nil, fmt.Errorf("unknown anonymization profile %q", name)
	}
	return buildProfile(name, raw)
}

func buildProfile(name string, raw ProfileConfig) (*anonymize.Profile, error) {
	tags := make(map[string]string, len(raw))
	var sw anonymize.Switches
	for key, value := range raw {
		if target, ok := switchField(&sw, key); ok {
			b, ok := value.(bool)
			if !ok {
				return nil, fmt.Errorf("profile %s: switch %s wants true or false, got %v", name, key, value)
			}
			*target = b
			continue
		}
		action, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("profile %s: tag %s wants an action name, got %v", name, key, value)
		}
		tags[key] = action
	}
	return anonymize.NewProfile(name, tags, sw)
}

// switchField matches the profile switch names in both their CamelCase and
// snake_case spellings.
func switchField(sw *anonymize.Switches, key string) (*bool, bool) {
	switch strings.ReplaceAll(strings.ToLower(key), "_", "") {
	case "pixelblackout":
		return &sw.PixelBlackout, true
	case "keepprivatetags":
		return &sw.KeepPrivateTags, true
	case "retainstudydate":
		return &sw.RetainStudyDate, true
	}
	return nil, false
}

func validatePort(key string, port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%s %d is outside 1-65535", key, port)
	}
	return nil
}
