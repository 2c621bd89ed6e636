// Package config holds embedder-tunable knobs shared by the compiler,
// GC, and VM. Modeled on the teacher's Config map: a tagged union of
// scalar values addressed by dotted path, with panics reserved for
// programming errors (asking for a path with the wrong type), never
// for data the embedder legitimately supplied.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type Config map[string]*cfgVal

// New creates a configuration primed with every default Vine's
// compiler, GC, and VM consult.
func New() *Config {
	m := make(Config)
	m.SetInt("compiler.optimize", 1)
	m.SetInt("compiler.max_constants", 1<<23)
	m.SetInt("compiler.max_locals", 200)
	m.SetInt("compiler.max_upvalues", 1<<15)
	m.SetFloat("gc.growth_ratio", 2.0)
	m.SetInt("gc.pause_bytes", 100*1024)
	m.SetInt("gc.step_multiplier", 200)
	m.SetInt("vm.call_depth_limit", 200)
	m.SetInt("vm.interrupt_poll_mask", 0xFF)
	return &m
}

type cfgValType int

const (
	cfgValUndefined cfgValType = iota
	cfgValBool
	cfgValInt
	cfgValFloat
	cfgValString
)

func (t cfgValType) String() string {
	return map[cfgValType]string{
		cfgValUndefined: "undefined",
		cfgValBool:      "bool",
		cfgValInt:       "int",
		cfgValFloat:     "float",
		cfgValString:    "string",
	}[t]
}

type cfgVal struct {
	typ      cfgValType
	asBool   bool
	asInt    int
	asFloat  float64
	asString string
}

func (v *cfgVal) assignType(t cfgValType) {
	if v.typ != t && v.typ != cfgValUndefined {
		panic(fmt.Sprintf("config: can't assign `%s` to type `%s`", t, v.typ))
	}
	v.typ = t
}

func (v *cfgVal) checkType(t cfgValType) {
	if v.typ != t {
		panic(fmt.Sprintf("config: can't retrieve `%s` from `%s` variable", t, v.typ))
	}
}

func (c *Config) SetBool(path string, v bool) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValBool)
	(*c)[path].asBool = v
}

func (c *Config) SetInt(path string, v int) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValInt)
	(*c)[path].asInt = v
}

func (c *Config) SetFloat(path string, v float64) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValFloat)
	(*c)[path].asFloat = v
}

func (c *Config) SetString(path string, v string) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValString)
	(*c)[path].asString = v
}

func (c *Config) GetBool(path string) bool {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValBool)
		return val.asBool
	}
	panic(fmt.Sprintf("config: bool setting `%s` does not exist", path))
}

func (c *Config) GetInt(path string) int {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValInt)
		return val.asInt
	}
	panic(fmt.Sprintf("config: int setting `%s` does not exist", path))
}

func (c *Config) GetFloat(path string) float64 {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValFloat)
		return val.asFloat
	}
	panic(fmt.Sprintf("config: float setting `%s` does not exist", path))
}

func (c *Config) GetString(path string) string {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValString)
		return val.asString
	}
	panic(fmt.Sprintf("config: string setting `%s` does not exist", path))
}

// yamlDoc is the on-disk shape accepted by LoadYAML: a flat mapping of
// dotted paths to scalars, mirroring the in-memory Config layout.
type yamlDoc map[string]interface{}

// LoadYAML merges scalar values from a YAML document into c, inferring
// the target type from the YAML scalar's own Go type. Keys not already
// present via New are added as new entries.
func (c *Config) LoadYAML(data []byte) error {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parsing yaml: %w", err)
	}
	for path, raw := range doc {
		switch v := raw.(type) {
		case bool:
			c.SetBool(path, v)
		case int:
			c.SetInt(path, v)
		case float64:
			c.SetFloat(path, v)
		case string:
			c.SetString(path, v)
		default:
			return fmt.Errorf("config: unsupported value for %q: %v", path, raw)
		}
	}
	return nil
}
