package config

import (
	"io/ioutil"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/helper"
	"github.com/relloyd/starpipe/quality"
	"github.com/relloyd/starpipe/source"
	"github.com/relloyd/starpipe/transform"
	"gopkg.in/yaml.v2"
)

var ErrDuplicateCustomCheck = errors.New("duplicate custom check name")

// Pipeline is the configuration of a conformance run.
// Keys match the CLI flag names so defaults, pipeline files, SP_* env vars and flags share one vocabulary.
type Pipeline struct {
	Sources                   source.Sources        `yaml:"sources" mapstructure:"sources"`
	Store                     string                `yaml:"store" mapstructure:"store" mandatory:"yes" errorTxt:"store DSN"`
	ExportDir                 string                `yaml:"export-dir,omitempty" mapstructure:"export-dir"`
	ExportS3                  string                `yaml:"export-s3,omitempty" mapstructure:"export-s3"`
	Parallel                  bool                  `yaml:"parallel" mapstructure:"parallel"`
	DemographicIDPrefix       string                `yaml:"demographic-id-prefix" mapstructure:"demographic-id-prefix"`
	CustomChecks              []quality.CustomCheck `yaml:"custom-checks,omitempty" mapstructure:"custom-checks"`
	LogLevel                  string                `yaml:"log-level" mapstructure:"log-level"`
	StatsDumpFrequencySeconds int                   `yaml:"stats" mapstructure:"stats"`
}

// envKeys are the scalar settings that may be overridden by env vars, e.g. SP_EXPORT_DIR.
var envKeys = []string{"store", "export-dir", "export-s3", "parallel", "demographic-id-prefix", "log-level", "stats"}

// PipelineKeys returns the scalar pipeline keys that may be stored as defaults.
func PipelineKeys() []string {
	return append([]string(nil), envKeys...)
}

// NewPipeline returns a Pipeline holding the built-in defaults.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Store:                     c.StoreMemory,
		DemographicIDPrefix:       c.DemographicIDPrefix,
		LogLevel:                  c.DefaultLogLevel,
		StatsDumpFrequencySeconds: c.DefaultStatsDumpFrequency,
	}
}

// LoadPipeline resolves the configuration from lowest to highest precedence:
// built-in defaults, the defaults file, the pipeline file and SP_* env vars.
// Either defaults or fileName may be empty. The result is not validated.
func LoadPipeline(defaults *File, fileName string) (*Pipeline, error) {
	p := NewPipeline()
	if defaults != nil {
		if err := defaults.Decode(p); err != nil {
			return nil, errors.Wrapf(err, "error reading defaults from %v", defaults.FullPath)
		}
	}
	if fileName != "" {
		if err := p.ReadFile(fileName); err != nil {
			return nil, err
		}
	}
	if err := p.ApplyEnv(); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadFile decodes the YAML pipeline file onto p.
// Keys missing from the file leave p unchanged.
func (p *Pipeline) ReadFile(fileName string) error {
	fileName, err := homedir.Expand(fileName)
	if err != nil {
		return err
	}
	b, err := ioutil.ReadFile(fileName)
	if err != nil {
		return errors.Wrapf(err, "error reading pipeline file %v", fileName)
	}
	return errors.Wrapf(p.ReadYAML(b), "error parsing pipeline file %v", fileName)
}

// ReadYAML decodes the YAML document b onto p.
func (p *Pipeline) ReadYAML(b []byte) error {
	m := make(map[string]interface{})
	if err := yaml.Unmarshal(b, &m); err != nil {
		return err
	}
	return decode(m, p)
}

// ApplyEnv overrides p with every SP_* env var that is set, e.g. SP_STORE or SP_SALES_SOURCE.
func (p *Pipeline) ApplyEnv() error {
	m := make(map[string]interface{})
	for _, key := range envKeys {
		if v := helper.ReadValueFromEnvWithDefault(helper.GetEnvVarName(key), ""); v != "" {
			m[key] = v
		}
	}
	src := make(map[string]interface{})
	for _, entity := range source.Entities {
		if v := helper.ReadValueFromEnvWithDefault(helper.GetSourceEnvVarName(entity), ""); v != "" {
			src[entity] = v
		}
	}
	if v := os.Getenv(helper.GetEnvVarName("REGION")); v != "" {
		src["region"] = v
	}
	if len(src) > 0 {
		m["sources"] = src
	}
	if len(m) == 0 {
		return nil
	}
	return errors.Wrap(decode(m, p), "error reading environment")
}

// Validate returns an error listing the mandatory settings that are missing.
func (p *Pipeline) Validate() error {
	if err := helper.ValidateStructIsPopulated(p); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(p.CustomChecks))
	for _, cc := range p.CustomChecks {
		name := strings.TrimSpace(cc.Name)
		if _, ok := seen[name]; ok {
			return errors.Wrap(ErrDuplicateCustomCheck, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// ValidateStore checks only the settings needed to read an existing store.
func (p *Pipeline) ValidateStore() error {
	if strings.TrimSpace(p.Store) == "" {
		return errors.New("please supply values for store DSN")
	}
	return nil
}

// Options returns the driver options held by p.
func (p *Pipeline) Options() transform.Options {
	return transform.Options{
		Parallel:                  p.Parallel,
		DemographicIDPrefix:       p.DemographicIDPrefix,
		CustomChecks:              p.CustomChecks,
		StatsDumpFrequencySeconds: p.StatsDumpFrequencySeconds,
	}
}
