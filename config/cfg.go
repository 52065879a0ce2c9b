package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	DocumentConfig struct {
		// MapStyles enables generation of style map, when disabled only
		// source identifiers are carried through conversion.
		MapStyles          bool `yaml:"map_styles"`
		PreserveFormatting bool `yaml:"preserve_formatting"`
		Sanitize           bool `yaml:"sanitize"`
		NormalizeText      bool `yaml:"normalize_text"`
		// KeepDocx stores promoted package next to resulting HTML.
		KeepDocx bool `yaml:"keep_docx"`
		// SaveStyleMap stores generated style map next to resulting HTML.
		SaveStyleMap          bool `yaml:"save_style_map"`
		FileNameTransliterate bool `yaml:"file_name_transliterate"`
		// OutputNameTemplate is expanded with document metadata to name
		// output files, may contain subdirectories.
		OutputNameTemplate string `yaml:"output_name_template,omitempty"`
		// StylesheetPath points to CSS file embedded into every resulting
		// document.
		StylesheetPath string `yaml:"stylesheet_path,omitempty" sanitize:"path_clean" validate:"omitempty,file"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig `yaml:"document"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

type TemplateFieldName string

// NOTE: must match yaml field name above
const OutputNameTemplateFieldName TemplateFieldName = "output_name_template"

var requiredOptions = []func(*gencfg.ProcessingOptions){
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
}

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to validate configuration, sanitizing: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
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

	// overwrite cfg values with values from the file
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
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
