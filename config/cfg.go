package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"tbc/document"
	"tbc/dom"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	EngineConfig struct {
		MaxDepth  int  `yaml:"max_depth" validate:"min=1,max=4096"`
		FreeNodes bool `yaml:"free_nodes"`
	}

	DocumentConfig struct {
		Format      document.Format `yaml:"format" validate:"gte=0,lte=3"`
		Charset     string          `yaml:"charset"`
		Medium      string          `yaml:"medium" validate:"required"`
		Stylesheets []string        `yaml:"stylesheets" validate:"dive,required"`
		Embedded    bool            `yaml:"use_embedded_styles"`
	}

	OutputConfig struct {
		LineNumbers   bool   `yaml:"line_numbers"`
		MatchPrefix   string `yaml:"match_prefix"`
		MatchTemplate string `yaml:"match_template"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Engine    EngineConfig   `yaml:"engine"`
		Document  DocumentConfig `yaml:"document"`
		Output    OutputConfig   `yaml:"output"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

// StackOptions returns document stack options for configured engine limits.
func (conf *EngineConfig) StackOptions() []dom.Option {
	opts := []dom.Option{dom.WithMaxDepth(conf.MaxDepth)}
	if conf.FreeNodes {
		opts = append(opts, dom.WithFreeNodes())
	}
	return opts
}

// Output fields are expanded per match at runtime, not when loading.
var requiredOptions = []func(*gencfg.ProcessingOptions){
	gencfg.WithDoNotExpandField("match_prefix"),
	gencfg.WithDoNotExpandField("match_template"),
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// only fields we defined are allowed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to
// provide sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
