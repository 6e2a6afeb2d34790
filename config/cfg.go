package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/google/uuid"
	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	// FileEntry names a document not managed by the site builder which is
	// prepended or appended to the reading order.
	FileEntry struct {
		File  string `yaml:"file" validate:"required"`
		Title string `yaml:"title" validate:"required"`
	}

	// MetadataConfig holds descriptive package fields. UID is the XML id
	// token of the unique identifier, Identifier its value.
	MetadataConfig struct {
		Title      string `yaml:"title" validate:"required"`
		Author     string `yaml:"author"`
		Language   string `yaml:"language" validate:"required"`
		Publisher  string `yaml:"publisher"`
		Rights     string `yaml:"rights"`
		Identifier string `yaml:"identifier"`
		Scheme     string `yaml:"scheme"`
		UID        string `yaml:"uid"`
	}

	EpubConfig struct {
		Basename          string         `yaml:"basename"`
		TransliterateName bool           `yaml:"transliterate_name"`
		Theme             string         `yaml:"theme"`
		TOCDepth          int            `yaml:"tocdepth" validate:"min=1,max=8"`
		LinkTargets       bool           `yaml:"link_targets"`
		FixZip            bool           `yaml:"fix_zip"`
		Metadata          MetadataConfig `yaml:"metadata"`
		PreFiles          []FileEntry    `yaml:"pre_files" validate:"dive"`
		PostFiles         []FileEntry    `yaml:"post_files" validate:"dive"`
		ExcludeFiles      []string       `yaml:"exclude_files" validate:"dive,required"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Epub      EpubConfig     `yaml:"epub"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

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
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if haveFile {
		// overwrite cfg values with values from the file
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg, err = unmarshalConfig(data, cfg, haveFile)
		if err != nil {
			return nil, fmt.Errorf("failed to process configuration file: %w", err)
		}
	}
	if len(cfg.Epub.Metadata.UID) == 0 {
		// readers require the package to have some unique identifier
		cfg.Epub.Metadata.UID = "uid"
	}
	if len(cfg.Epub.Metadata.Identifier) == 0 {
		cfg.Epub.Metadata.Identifier = "urn:uuid:" + uuid.NewString()
		if len(cfg.Epub.Metadata.Scheme) == 0 {
			cfg.Epub.Metadata.Scheme = "URN"
		}
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
