// Package config holds the router settings: search costs, stage limits,
// net ordering and masking policies, and net classes. Settings load from a
// YAML file and can be changed key by key from a command script.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wrcad/xictools-sub010/pkg/maze"
)

// ErrUnknownKey is returned by Set, Unset and SetCost for names that are
// not settings.
var ErrUnknownKey = errors.New("config: unknown key")

// Net order policies.
const (
	OrderMostNodes = "most-nodes"
	OrderBBox      = "bbox"
	OrderNone      = "none"
)

// Mask modes.
const (
	MaskNone = "none"
	MaskBBox = "bbox"
	MaskAuto = "auto"
)

// Via patterns.
const (
	PatternNone     = "none"
	PatternNormal   = "normal"
	PatternInverted = "inverted"
)

// Costs are the search weights.
type Costs struct {
	Segment   int `yaml:"segment" validate:"min=1"`
	Via       int `yaml:"via" validate:"min=0"`
	Jog       int `yaml:"jog" validate:"min=0"`
	Crossover int `yaml:"crossover" validate:"min=0"`
	Block     int `yaml:"block" validate:"min=0"`
	Offset    int `yaml:"offset" validate:"min=0"`
	Conflict  int `yaml:"conflict" validate:"min=0"`
}

// Mask selects the search corridor.
type Mask struct {
	Mode string `yaml:"mode" validate:"oneof=none bbox auto"`
	// Halo is the corridor width in tracks on the first pass.
	Halo int `yaml:"halo" validate:"min=0,max=255"`
}

// Config is the complete router configuration.
type Config struct {
	Costs         Costs  `yaml:"costs"`
	Passes        int    `yaml:"passes" validate:"min=1,max=100"`
	StackedVias   int    `yaml:"stacked_vias" validate:"min=1"`
	ViaPattern    string `yaml:"via_pattern" validate:"oneof=none normal inverted"`
	NetOrder      string `yaml:"net_order" validate:"oneof=most-nodes bbox none"`
	RipLimit      int    `yaml:"rip_limit" validate:"min=1"`
	KeepTrying    int    `yaml:"keep_trying" validate:"min=0"`
	ForceRoutable bool   `yaml:"force_routable"`
	Mask          Mask   `yaml:"mask"`

	// Effort scales the stage 2 try budget.
	Effort int `yaml:"effort" validate:"min=1"`

	CriticalNets []string `yaml:"critical_nets"`
	IgnoredNets  []string `yaml:"ignored_nets"`
	GlobalNets   []string `yaml:"global_nets"`

	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// DefaultConfig returns the standard settings.
func DefaultConfig() *Config {
	p := maze.DefaultParams()
	return &Config{
		Costs: Costs{
			Segment:   p.Costs.Segment,
			Via:       p.Costs.Via,
			Jog:       p.Costs.Jog,
			Crossover: p.Costs.Crossover,
			Block:     p.Costs.Block,
			Offset:    p.Costs.Offset,
			Conflict:  p.Costs.Conflict,
		},
		Passes:      p.NumPasses,
		StackedVias: p.StackedVias,
		ViaPattern:  PatternNone,
		NetOrder:    OrderMostNodes,
		RipLimit:    10,
		Mask:        Mask{Mode: MaskAuto, Halo: 1},
		Effort:      8,
		LogLevel:    "info",
	}
}

// Load reads a YAML file over the defaults. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: %q fails %s", fe.Namespace(), fmt.Sprint(fe.Value()), fe.Tag())
		}
		return err
	}
	return nil
}

// Params returns the search parameters the settings describe.
func (c *Config) Params() maze.Params {
	return maze.Params{
		Costs: maze.Costs{
			Segment:   c.Costs.Segment,
			Via:       c.Costs.Via,
			Jog:       c.Costs.Jog,
			Crossover: c.Costs.Crossover,
			Block:     c.Costs.Block,
			Offset:    c.Costs.Offset,
			Conflict:  c.Costs.Conflict,
		},
		NumPasses:     c.Passes,
		StackedVias:   c.StackedVias,
		ForceRoutable: c.ForceRoutable,
	}
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (c *Config) costField(name string) (*int, bool) {
	switch strings.ToLower(name) {
	case "segment", "seg", "segcost":
		return &c.Costs.Segment, true
	case "via", "viacost":
		return &c.Costs.Via, true
	case "jog", "jogcost":
		return &c.Costs.Jog, true
	case "crossover", "xver", "xvercost":
		return &c.Costs.Crossover, true
	case "block", "blockcost":
		return &c.Costs.Block, true
	case "offset", "offsetcost":
		return &c.Costs.Offset, true
	case "conflict", "conflictcost":
		return &c.Costs.Conflict, true
	}
	return nil, false
}

// SetCost changes one search weight.
func (c *Config) SetCost(name string, v int) error {
	f, ok := c.costField(name)
	if !ok {
		return fmt.Errorf("%w: cost %q", ErrUnknownKey, name)
	}
	old := *f
	*f = v
	if err := c.Validate(); err != nil {
		*f = old
		return err
	}
	return nil
}

// Set changes one setting from its string form. Net class keys add a net
// to the class.
func (c *Config) Set(key, value string) error {
	saved := *c
	saved.CriticalNets = slices.Clone(c.CriticalNets)
	saved.IgnoredNets = slices.Clone(c.IgnoredNets)
	saved.GlobalNets = slices.Clone(c.GlobalNets)

	if err := c.set(strings.ToLower(key), value); err != nil {
		*c = saved
		return err
	}
	if err := c.Validate(); err != nil {
		*c = saved
		return err
	}
	return nil
}

func (c *Config) set(key, value string) error {
	atoi := func(dst *int) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
		return nil
	}
	if f, ok := c.costField(key); ok {
		return atoi(f)
	}
	switch key {
	case "passes":
		return atoi(&c.Passes)
	case "stacked_vias", "vias":
		return atoi(&c.StackedVias)
	case "via_pattern":
		c.ViaPattern = strings.ToLower(value)
	case "net_order":
		c.NetOrder = strings.ToLower(value)
	case "rip_limit":
		return atoi(&c.RipLimit)
	case "keep_trying":
		return atoi(&c.KeepTrying)
	case "force_routable":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		c.ForceRoutable = b
	case "mask":
		c.Mask.Mode = strings.ToLower(value)
	case "mask_halo":
		return atoi(&c.Mask.Halo)
	case "effort":
		return atoi(&c.Effort)
	case "log_level":
		c.LogLevel = strings.ToLower(value)
	case "critical":
		c.CriticalNets = appendUnique(c.CriticalNets, value)
	case "ignore":
		c.IgnoredNets = appendUnique(c.IgnoredNets, value)
	case "global":
		c.GlobalNets = appendUnique(c.GlobalNets, value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}

// Unset returns a setting to its default. Net class keys clear the class.
func (c *Config) Unset(key string) error {
	def := DefaultConfig()
	key = strings.ToLower(key)
	if f, ok := c.costField(key); ok {
		d, _ := def.costField(key)
		*f = *d
		return nil
	}
	switch key {
	case "passes":
		c.Passes = def.Passes
	case "stacked_vias", "vias":
		c.StackedVias = def.StackedVias
	case "via_pattern":
		c.ViaPattern = def.ViaPattern
	case "net_order":
		c.NetOrder = def.NetOrder
	case "rip_limit":
		c.RipLimit = def.RipLimit
	case "keep_trying":
		c.KeepTrying = def.KeepTrying
	case "force_routable":
		c.ForceRoutable = def.ForceRoutable
	case "mask":
		c.Mask.Mode = def.Mask.Mode
	case "mask_halo":
		c.Mask.Halo = def.Mask.Halo
	case "effort":
		c.Effort = def.Effort
	case "log_level":
		c.LogLevel = def.LogLevel
	case "critical":
		c.CriticalNets = nil
	case "ignore":
		c.IgnoredNets = nil
	case "global":
		c.GlobalNets = nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
