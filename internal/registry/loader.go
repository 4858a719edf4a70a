package registry

import (
	"fmt"
	"os"
	"path/filepath"

	goversion "github.com/hashicorp/go-version"
	"github.com/spf13/viper"
)

// SupportedSchema is the newest descriptor schema line this build reads.
// Files declaring a newer schemaVersion are refused rather than half-parsed.
const SupportedSchema = "1.1.0"

// Loader reads descriptor files from the provider config directory.
// Layout: <dir>/<provider>/{models,status,aliases,vendors,modalities}.json
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

func (l *Loader) LoadModels(provider string) (*ModelsFile, error) {
	var f ModelsFile
	if err := l.read(provider, "models", &f); err != nil {
		return nil, err
	}
	if err := checkSchema(f.SchemaVersion); err != nil {
		return nil, fmt.Errorf("models.json for %s: %w", provider, err)
	}
	return &f, nil
}

func (l *Loader) LoadStatus(provider string) (*StatusConfig, error) {
	var f StatusConfig
	if err := l.read(provider, "status", &f); err != nil {
		return nil, err
	}
	if err := checkSchema(f.SchemaVersion); err != nil {
		return nil, fmt.Errorf("status.json for %s: %w", provider, err)
	}
	return &f, nil
}

func (l *Loader) LoadAliases(provider string) (*AliasConfig, error) {
	var f AliasConfig
	if err := l.read(provider, "aliases", &f); err != nil {
		return nil, err
	}
	if err := checkSchema(f.SchemaVersion); err != nil {
		return nil, fmt.Errorf("aliases.json for %s: %w", provider, err)
	}
	return &f, nil
}

func (l *Loader) LoadVendors(provider string) (*VendorsFile, error) {
	var f VendorsFile
	if err := l.read(provider, "vendors", &f); err != nil {
		return nil, err
	}
	if err := checkSchema(f.SchemaVersion); err != nil {
		return nil, fmt.Errorf("vendors.json for %s: %w", provider, err)
	}
	return &f, nil
}

func (l *Loader) LoadModalities(provider string) (*ModalitiesFile, error) {
	var f ModalitiesFile
	if err := l.read(provider, "modalities", &f); err != nil {
		return nil, err
	}
	if err := checkSchema(f.SchemaVersion); err != nil {
		return nil, fmt.Errorf("modalities.json for %s: %w", provider, err)
	}
	return &f, nil
}

// Providers lists the provider subdirectories present in the config dir.
func (l *Loader) Providers() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("reading config dir %s: %w", l.dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

func (l *Loader) read(provider, name string, dest interface{}) error {
	path := filepath.Join(l.dir, provider, name+".json")

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := v.Unmarshal(dest); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func checkSchema(declared string) error {
	if declared == "" {
		return nil // legacy files predate the schema marker
	}
	have, err := goversion.NewVersion(declared)
	if err != nil {
		return fmt.Errorf("bad schemaVersion %q: %w", declared, err)
	}
	max, err := goversion.NewVersion(SupportedSchema)
	if err != nil {
		return err
	}
	if have.GreaterThan(max) {
		return fmt.Errorf("schemaVersion %s is newer than supported %s", declared, SupportedSchema)
	}
	return nil
}
