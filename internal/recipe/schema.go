package recipe

// Recipe is one clone operation.
type Recipe struct {
	// Version of the recipe format. Defaults to "1".
	Version string `yaml:"version" toml:"version"`
	// Source is the type to clone.
	Source Source `yaml:"source" toml:"source"`
	// Targets receive the clone. All of them must live in one module.
	Targets []Target `yaml:"targets" toml:"targets"`
	// Weaves rewrite cloned elements; the first matching weave wins.
	Weaves []Weave `yaml:"weaves,omitempty" toml:"weaves"`
	// Wrap turns the recipe into a decoration of one method.
	Wrap *Wrap `yaml:"wrap,omitempty" toml:"wrap"`
	// Output is the file the target module is written to. Defaults to
	// "<target module>.yaml".
	Output string `yaml:"output,omitempty" toml:"output"`
}

// Source names the type to clone.
type Source struct {
	Module string `yaml:"module" toml:"module"`
	Type   string `yaml:"type" toml:"type"`
}

// Target is either an existing type to merge into (Type) or a fresh type
// (Namespace and Name).
type Target struct {
	Module    string `yaml:"module" toml:"module"`
	Type      string `yaml:"type,omitempty" toml:"type"`
	Namespace string `yaml:"namespace,omitempty" toml:"namespace"`
	Name      string `yaml:"name,omitempty" toml:"name"`
}

// Merging reports whether the target names an existing type.
func (t Target) Merging() bool { return t.Type != "" }

// Weave selects cloned elements by name and optionally kind, and renames
// them or changes their access.
type Weave struct {
	Match  string `yaml:"match" toml:"match"`
	Kind   string `yaml:"kind,omitempty" toml:"kind"`
	Rename string `yaml:"rename,omitempty" toml:"rename"`
	Access string `yaml:"access,omitempty" toml:"access"`
}

// Wrap decorates Method of the merge target with the source's Wrapper
// method. Calls to Placeholder inside the wrapper reach the original.
type Wrap struct {
	Method      string `yaml:"method" toml:"method"`
	Wrapper     string `yaml:"wrapper" toml:"wrapper"`
	Placeholder string `yaml:"placeholder,omitempty" toml:"placeholder"`
}
