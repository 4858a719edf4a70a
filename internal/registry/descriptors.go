package registry

// Descriptor types mirror the JSON files in the provider config directory.
// They are loaded once, cached, and replaced wholesale on refresh; nothing
// mutates a loaded descriptor in place.

// ModelConfig is the resolved identity and capability set of one model.
type ModelConfig struct {
	ModelID      string            `json:"modelId" mapstructure:"modelId"`
	Provider     string            `json:"provider" mapstructure:"provider"`
	Vendor       string            `json:"vendor" mapstructure:"vendor"`
	Capabilities ModelCapabilities `json:"capabilities" mapstructure:"capabilities"`
	Aliases      []string          `json:"aliases,omitempty" mapstructure:"aliases"`
	Defaults     ModelDefaults     `json:"defaults,omitempty" mapstructure:"defaults"`
}

type ModelCapabilities struct {
	Streaming      bool            `json:"streaming" mapstructure:"streaming"`
	Modalities     ModelModalities `json:"modalities" mapstructure:"modalities"`
	InferenceTypes InferenceTypes  `json:"inferenceTypes" mapstructure:"inferenceTypes"`
}

type ModelModalities struct {
	Input  []string `json:"input" mapstructure:"input"`
	Output []string `json:"output" mapstructure:"output"`
}

type InferenceTypes struct {
	OnDemand    bool `json:"onDemand" mapstructure:"onDemand"`
	Provisioned bool `json:"provisioned" mapstructure:"provisioned"`
	Streaming   bool `json:"streaming" mapstructure:"streaming"`
}

type ModelDefaults struct {
	MaxTokens   int     `json:"maxTokens,omitempty" mapstructure:"maxTokens"`
	Temperature float64 `json:"temperature,omitempty" mapstructure:"temperature"`
}

// ModelsFile is the on-disk shape of models.json.
type ModelsFile struct {
	SchemaVersion string        `json:"schemaVersion" mapstructure:"schemaVersion"`
	Provider      string        `json:"provider" mapstructure:"provider"`
	Models        []ModelConfig `json:"models" mapstructure:"models"`
}

// StatusConfig is the readiness descriptor: which models are invocable
// under which connection type right now.
type StatusConfig struct {
	SchemaVersion string        `json:"schemaVersion" mapstructure:"schemaVersion"`
	Statuses      []StatusEntry `json:"statuses" mapstructure:"statuses"`
}

type StatusEntry struct {
	Status      string             `json:"status" mapstructure:"status"` // READY | NOT_READY
	Connections []StatusConnection `json:"connections,omitempty" mapstructure:"connections"`
	Vendors     []VendorModels     `json:"vendors,omitempty" mapstructure:"vendors"`
}

type StatusConnection struct {
	Type    string         `json:"type" mapstructure:"type"` // ONDEMAND | PROVISIONED
	Vendors []VendorModels `json:"vendors" mapstructure:"vendors"`
}

type VendorModels struct {
	Name   string   `json:"name" mapstructure:"name"`
	Models []string `json:"models" mapstructure:"models"`
}

// IsReady reports whether the model is listed under any connection type of
// a READY status entry.
func (s *StatusConfig) IsReady(modelID string) bool {
	for _, entry := range s.Statuses {
		if entry.Status != "READY" {
			continue
		}
		for _, conn := range entry.Connections {
			for _, v := range conn.Vendors {
				for _, m := range v.Models {
					if m == modelID {
						return true
					}
				}
			}
		}
	}
	return false
}

// AliasConfig maps human-friendly names to canonical model ids.
type AliasConfig struct {
	SchemaVersion string            `json:"schemaVersion" mapstructure:"schemaVersion"`
	Aliases       map[string]string `json:"aliases" mapstructure:"aliases"`
}

// VendorConfig describes one vendor family's request constraints.
type VendorConfig struct {
	Name               string   `json:"name" mapstructure:"name"`
	Family             string   `json:"family" mapstructure:"family"` // chat | completion
	AllowedRoles       []string `json:"allowedRoles" mapstructure:"allowedRoles"`
	MaxMessages        int      `json:"maxMessages" mapstructure:"maxMessages"`
	DefaultMaxTokens   int      `json:"defaultMaxTokens" mapstructure:"defaultMaxTokens"`
	DefaultTemperature float64  `json:"defaultTemperature" mapstructure:"defaultTemperature"`
}

type VendorsFile struct {
	SchemaVersion string         `json:"schemaVersion" mapstructure:"schemaVersion"`
	Vendors       []VendorConfig `json:"vendors" mapstructure:"vendors"`
}

// ModalityConfig describes the validation rules for one input/output pairing.
type ModalityConfig struct {
	Name           string   `json:"name" mapstructure:"name"`
	Aliases        []string `json:"aliases,omitempty" mapstructure:"aliases"`
	RequiredFields []string `json:"requiredFields" mapstructure:"requiredFields"`
	AllowedRoles   []string `json:"allowedRoles" mapstructure:"allowedRoles"`
	MaxMessages    int      `json:"maxMessages" mapstructure:"maxMessages"`
}

type ModalitiesFile struct {
	SchemaVersion string           `json:"schemaVersion" mapstructure:"schemaVersion"`
	Modalities    []ModalityConfig `json:"modalities" mapstructure:"modalities"`
}
