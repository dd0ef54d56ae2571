package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Preferences are the global add-on settings shared by every rig
type Preferences struct {
	Prefix                    string  `yaml:"prefix"`
	RigifyIDProp              string  `yaml:"rigify_id_prop"`
	OrgPrefix                 string  `yaml:"org_prefix"`
	DefPrefix                 string  `yaml:"def_prefix"`
	CollectionName            string  `yaml:"collection_name"`
	ExportScale               float32 `yaml:"export_scale"`
	DefaultArmatureName       string  `yaml:"default_armature_name"`
	AllowExportWithoutPreview bool    `yaml:"allow_export_without_preview"`
	NameEncoding              string  `yaml:"name_encoding"`
}

func DefaultPreferences() *Preferences {
	return &Preferences{
		Prefix:                    "SR_",
		RigifyIDProp:              "rig_id",
		OrgPrefix:                 "ORG-",
		DefPrefix:                 "DEF-",
		CollectionName:            "SR_GameReady",
		ExportScale:               0.01,
		DefaultArmatureName:       "Armature",
		AllowExportWithoutPreview: true,
	}
}

func (p *Preferences) Validate() error {
	if p.ExportScale <= 0 {
		return errors.Errorf("Export scale must be positive, got %v", p.ExportScale)
	}
	if p.OrgPrefix == "" || p.DefPrefix == "" {
		return errors.Errorf("Bone name markers can't be empty")
	}
	if p.DefaultArmatureName == "" {
		return errors.Errorf("Default armature name can't be empty")
	}
	if p.NameEncoding != "" {
		if _, err := FindEncoding(p.NameEncoding); err != nil {
			return err
		}
	}
	return nil
}

// ReadPreferences decodes yaml over the defaults, so missing keys keep default values
func ReadPreferences(r io.Reader) (*Preferences, error) {
	p := DefaultPreferences()
	if err := yaml.NewDecoder(r).Decode(p); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "Failed to decode preferences")
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrapf(err, "Invalid preferences")
	}
	return p, nil
}

// LoadPreferences reads path, empty path gives defaults
func LoadPreferences(path string) (*Preferences, error) {
	if path == "" {
		return DefaultPreferences(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open preferences %q", path)
	}
	defer f.Close()
	return ReadPreferences(f)
}
