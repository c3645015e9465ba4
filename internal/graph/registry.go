package graph

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"
)

// Addressing says how a provider is referenced from a consuming field.
type Addressing string

const (
	// ByName providers are referenced with {{name.kind}} tokens.
	ByName Addressing = "name"
	// ByID providers are wired straight into a fixed port, with no token.
	ByID Addressing = "id"
	// ByNodeID providers are wired like ByID into fixed ports, and referenced
	// from dynamic fields by a name derived from the node id.
	ByNodeID Addressing = "node"
)

var nodeNameUnsafe = regexp.MustCompile(`[^A-Za-z0-9_$]`)

// FieldSpec is a templated field of a node kind. Port names a fixed input
// port the field feeds; when empty every distinct reference name in the
// field gets its own dynamic port.
type FieldSpec struct {
	Name string `yaml:"name"`
	Port string `yaml:"port,omitempty"`
}

func (f FieldSpec) Dynamic() bool {
	return f.Port == ""
}

// ProviderSpec describes a node kind that can be referenced.
type ProviderSpec struct {
	Addressing  Addressing        `yaml:"addressing"`
	Output      string            `yaml:"output"`
	NameField   string            `yaml:"name_field,omitempty"`
	NamePrefix  string            `yaml:"name_prefix,omitempty"`
	KindField   string            `yaml:"kind_field,omitempty"`
	Kinds       map[string]string `yaml:"kinds,omitempty"`
	DefaultKind string            `yaml:"default_kind,omitempty"`
}

// NodeName is the reference name of a ByNodeID provider: NamePrefix followed
// by the node id with every character outside [A-Za-z0-9_$] turned into _.
func (p *ProviderSpec) NodeName(id string) string {
	return p.NamePrefix + nodeNameUnsafe.ReplaceAllString(id, "_")
}

// KindSuffix maps a kind option (as stored in the kind field) to the token
// suffix used in references.
func (p *ProviderSpec) KindSuffix(option string) string {
	if suffix, ok := p.Kinds[option]; ok {
		return suffix
	}
	if p.DefaultKind != "" {
		return p.DefaultKind
	}
	return "text"
}

// Suffixes is the set of every suffix the provider can emit.
func (p *ProviderSpec) Suffixes() map[string]bool {
	set := map[string]bool{p.KindSuffix(""): true}
	for _, suffix := range p.Kinds {
		set[suffix] = true
	}
	return set
}

// DefaultOption is the kind option a freshly placed provider starts with.
func (p *ProviderSpec) DefaultOption() string {
	options := make([]string, 0, len(p.Kinds))
	for option, suffix := range p.Kinds {
		if suffix == p.KindSuffix("") {
			options = append(options, option)
		}
	}
	if len(options) == 0 {
		return ""
	}
	slices.Sort(options)
	return options[0]
}

// KindSpec is the engine-relevant part of a node kind.
type KindSpec struct {
	Templated []FieldSpec   `yaml:"templated,omitempty"`
	Provider  *ProviderSpec `yaml:"provider,omitempty"`
}

// Registry maps node kind tags to their templated fields and provider
// behavior. Propagation walks the registry instead of branching on kinds.
type Registry struct {
	kinds map[string]KindSpec
}

func NewRegistry(kinds map[string]KindSpec) *Registry {
	r := &Registry{kinds: make(map[string]KindSpec, len(kinds))}
	for tag, spec := range kinds {
		r.kinds[tag] = spec
	}
	return r
}

// DefaultRegistry is the node catalogue of the pipeline editor.
func DefaultRegistry() *Registry {
	return NewRegistry(map[string]KindSpec{
		"customInput": {
			Provider: &ProviderSpec{
				Addressing:  ByName,
				Output:      "value",
				NameField:   "inputName",
				NamePrefix:  "input",
				KindField:   "inputType",
				Kinds:       map[string]string{"Text": "text", "File": "file"},
				DefaultKind: "text",
			},
		},
		"variable": {
			Provider: &ProviderSpec{
				Addressing:  ByName,
				Output:      "value",
				NameField:   "name",
				NamePrefix:  "var",
				DefaultKind: "text",
			},
		},
		"text": {
			Templated: []FieldSpec{{Name: "text"}},
			Provider:  &ProviderSpec{Addressing: ByNodeID, Output: "output", NamePrefix: "n_"},
		},
		"llm": {
			Templated: []FieldSpec{{Name: "prompt", Port: "prompt"}},
			Provider:  &ProviderSpec{Addressing: ByNodeID, Output: "response", NamePrefix: "n_"},
		},
		"customOutput": {
			Templated: []FieldSpec{{Name: "output"}},
		},
		"uppercase": {},
		"concat":    {},
		"httpGet":   {},
		"delay":     {},
	})
}

// LoadRegistry reads a kind catalogue from YAML.
func LoadRegistry(r io.Reader) (*Registry, error) {
	var kinds map[string]KindSpec
	if err := yaml.NewDecoder(r).Decode(&kinds); err != nil {
		return nil, fmt.Errorf("failed to decode kind registry: %w", err)
	}

	for tag, spec := range kinds {
		if err := validateKind(tag, spec); err != nil {
			return nil, err
		}
	}

	return NewRegistry(kinds), nil
}

// LoadRegistryFile reads a kind catalogue from a YAML file.
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open kind registry: %w", err)
	}
	defer f.Close()

	return LoadRegistry(f)
}

func validateKind(tag string, spec KindSpec) error {
	seen := make(map[string]bool, len(spec.Templated))
	for _, f := range spec.Templated {
		if f.Name == "" {
			return fmt.Errorf("invalid kind %q: templated field without name", tag)
		}
		if seen[f.Name] {
			return fmt.Errorf("invalid kind %q: duplicate templated field %q", tag, f.Name)
		}
		seen[f.Name] = true
	}

	p := spec.Provider
	if p == nil {
		return nil
	}
	if p.Output == "" {
		return fmt.Errorf("invalid kind %q: provider without output port", tag)
	}
	switch p.Addressing {
	case ByName:
		if p.NameField == "" {
			return fmt.Errorf("invalid kind %q: name addressed provider without name_field", tag)
		}
	case ByID, ByNodeID:
	default:
		return fmt.Errorf("invalid kind %q: unknown addressing %q", tag, p.Addressing)
	}

	return nil
}

// Kind returns the spec of a kind tag. Unknown kinds have no templated
// fields and provide nothing.
func (r *Registry) Kind(tag string) (KindSpec, bool) {
	spec, ok := r.kinds[tag]
	return spec, ok
}

// Kinds returns the registered tags in sorted order.
func (r *Registry) Kinds() []string {
	tags := make([]string, 0, len(r.kinds))
	for tag := range r.kinds {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

func (r *Registry) Templated(tag string) []FieldSpec {
	return r.kinds[tag].Templated
}

func (r *Registry) Field(tag, name string) (FieldSpec, bool) {
	for _, f := range r.kinds[tag].Templated {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

func (r *Registry) Provider(tag string) (*ProviderSpec, bool) {
	p := r.kinds[tag].Provider
	return p, p != nil
}
