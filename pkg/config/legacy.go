package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/geom"
)

// LegacyLexer tokenizes the line-oriented key/value route configuration.
var LegacyLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "EOL", Pattern: `[\n\r]+`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Number", Pattern: `[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`},
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.\-\[\]/<>]*`},
})

// LegacyFile is a parsed route configuration.
type LegacyFile struct {
	Lines []*LegacyLine `( @@ | EOL )*`
}

// LegacyLine is one "key value..." statement.
type LegacyLine struct {
	Pos  lexer.Position
	Key  string         `@Ident`
	Args []*LegacyValue `@@*`
}

// LegacyValue is a number or a word.
type LegacyValue struct {
	Number *string `  @Number`
	Word   *string `| @Ident | @String`
}

func (v *LegacyValue) String() string {
	if v.Number != nil {
		return *v.Number
	}
	return strings.Trim(*v.Word, `"`)
}

var legacyParser = participle.MustBuild[LegacyFile](
	participle.Lexer(LegacyLexer),
	participle.Elide("Comment", "Whitespace"),
)

// layerSpec collects the layer settings of a legacy file.
type layerSpec struct {
	name      string
	width     *float64
	spacing   *float64
	pitchX    *float64
	pitchY    *float64
	direction *db.Direction
}

type viaSpec struct {
	name          string
	width, height float64
}

type obstruction struct {
	layer string
	rect  geom.Rect
}

// Legacy holds the technology part of a legacy file: settings that change
// the design rather than the router.
type Legacy struct {
	NumLayers    int
	layers       map[int]*layerSpec
	vias         map[int]*viaSpec
	obstructions []obstruction
}

var (
	layerKey = regexp.MustCompile(`^layer_(\d+)_(name|width|spacing|pitch|direction)$`)
	viaKey   = regexp.MustCompile(`^via_(\d+)_(name|size)$`)
)

// LoadLegacy reads a legacy route configuration from path, applying its
// router settings to cfg.
func LoadLegacy(path string, cfg *Config) (*Legacy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return ParseLegacy(path, f, cfg)
}

// ParseLegacy reads a legacy route configuration, applying its router
// settings to cfg. Keys are case insensitive; layers and vias are numbered
// from 1.
func ParseLegacy(name string, r io.Reader, cfg *Config) (*Legacy, error) {
	file, err := legacyParser.Parse(name, r)
	if err != nil {
		return nil, fmt.Errorf("config: parse error: %w", err)
	}
	lg := &Legacy{layers: make(map[int]*layerSpec), vias: make(map[int]*viaSpec)}
	for _, line := range file.Lines {
		if err := lg.apply(line, cfg); err != nil {
			return nil, fmt.Errorf("config: %s:%d: %w", name, line.Pos.Line, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", name, err)
	}
	return lg, nil
}

func (lg *Legacy) apply(line *LegacyLine, cfg *Config) error {
	key := strings.ToLower(line.Key)
	args := make([]string, len(line.Args))
	for i, a := range line.Args {
		args[i] = a.String()
	}
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d values", key, n)
		}
		return nil
	}
	num := func(i int) (float64, error) {
		v, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return v, nil
	}

	if m := layerKey.FindStringSubmatch(key); m != nil {
		if err := need(1); err != nil {
			return err
		}
		return lg.setLayer(m[1], m[2], args)
	}
	if m := viaKey.FindStringSubmatch(key); m != nil {
		if err := need(1); err != nil {
			return err
		}
		return lg.setVia(m[1], m[2], args)
	}

	switch key {
	case "num_layers":
		if err := need(1); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		lg.NumLayers = n
		return nil
	case "num_passes":
		if err := need(1); err != nil {
			return err
		}
		return cfg.Set("passes", args[0])
	case "route_segment_cost", "route_via_cost", "route_jog_cost", "route_crossover_cost",
		"route_block_cost", "route_offset_cost", "route_conflict_cost":
		if err := need(1); err != nil {
			return err
		}
		name := strings.TrimSuffix(strings.TrimPrefix(key, "route_"), "_cost")
		return cfg.Set(name, args[0])
	case "stack", "stacked_vias", "via_stack":
		if err := need(1); err != nil {
			return err
		}
		return cfg.Set("stacked_vias", args[0])
	case "via_pattern", "net_order", "rip_limit", "keep_trying", "effort", "mask", "mask_halo":
		if err := need(1); err != nil {
			return err
		}
		return cfg.Set(key, args[0])
	case "force_routable":
		if len(args) == 0 {
			return cfg.Set(key, "true")
		}
		return cfg.Set(key, args[0])
	case "do_not_route", "ignore":
		return setAll(cfg, "ignore", args)
	case "route_priority", "critical":
		return setAll(cfg, "critical", args)
	case "global", "vdd", "gnd":
		return setAll(cfg, "global", args)
	case "obstruction":
		if err := need(5); err != nil {
			return err
		}
		var v [4]float64
		for i := range v {
			f, err := num(i)
			if err != nil {
				return err
			}
			v[i] = f
		}
		lg.obstructions = append(lg.obstructions, obstruction{
			layer: args[4],
			rect:  geom.NewRect(v[0], v[1], v[2], v[3]),
		})
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownKey, line.Key)
}

func setAll(cfg *Config, key string, nets []string) error {
	for _, n := range nets {
		if err := cfg.Set(key, n); err != nil {
			return err
		}
	}
	return nil
}

func (lg *Legacy) setLayer(num, field string, args []string) error {
	i, _ := strconv.Atoi(num)
	if i < 1 {
		return fmt.Errorf("layer numbers start at 1")
	}
	spec := lg.layers[i-1]
	if spec == nil {
		spec = &layerSpec{}
		lg.layers[i-1] = spec
	}
	parse := func(s string) (*float64, error) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("layer %d %s: %w", i, field, err)
		}
		return &v, nil
	}
	var err error
	switch field {
	case "name":
		spec.name = args[0]
	case "width":
		spec.width, err = parse(args[0])
	case "spacing":
		spec.spacing, err = parse(args[0])
	case "pitch":
		if spec.pitchX, err = parse(args[0]); err != nil {
			return err
		}
		spec.pitchY = spec.pitchX
		if len(args) > 1 {
			spec.pitchY, err = parse(args[1])
		}
	case "direction":
		var d db.Direction
		if d, err = db.ParseDirection(strings.ToLower(args[0])); err == nil {
			spec.direction = &d
		}
	}
	return err
}

func (lg *Legacy) setVia(num, field string, args []string) error {
	i, _ := strconv.Atoi(num)
	if i < 1 {
		return fmt.Errorf("via numbers start at 1")
	}
	spec := lg.vias[i-1]
	if spec == nil {
		spec = &viaSpec{}
		lg.vias[i-1] = spec
	}
	switch field {
	case "name":
		spec.name = args[0]
	case "size":
		w, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("via %d size: %w", i, err)
		}
		spec.width, spec.height = w, w
		if len(args) > 1 {
			if spec.height, err = strconv.ParseFloat(args[1], 64); err != nil {
				return fmt.Errorf("via %d size: %w", i, err)
			}
		}
	}
	return nil
}

// Apply merges the layer, via and obstruction settings into d. Layers
// named past the end of the stack are appended and must be fully
// described.
func (lg *Legacy) Apply(d *db.Design) error {
	tech := d.Tech
	if tech == nil {
		tech = &db.Tech{}
		d.Tech = tech
	}
	n := max(lg.NumLayers, len(tech.Layers))
	for i := range lg.layers {
		n = max(n, i+1)
	}
	for len(tech.Layers) < n {
		tech.Layers = append(tech.Layers, db.Layer{Name: fmt.Sprintf("metal%d", len(tech.Layers)+1)})
	}
	for i := 0; i < n; i++ {
		spec := lg.layers[i]
		if spec == nil {
			continue
		}
		l := &tech.Layers[i]
		if spec.name != "" {
			l.Name = spec.name
		}
		if spec.width != nil {
			l.Width = *spec.width
		}
		if spec.spacing != nil {
			l.Spacing = *spec.spacing
		}
		if spec.pitchX != nil {
			l.PitchX, l.PitchY = *spec.pitchX, *spec.pitchY
		}
		if spec.direction != nil {
			l.Direction = *spec.direction
		}
	}
	for i := 0; i < n-1; i++ {
		spec := lg.vias[i]
		if spec == nil {
			continue
		}
		v := db.Via{Name: spec.name, Lower: i, Width: spec.width, Height: spec.height}
		if v.Name == "" {
			v.Name = fmt.Sprintf("via%d%d", i+1, i+2)
		}
		replaced := false
		for j := range tech.Vias {
			if tech.Vias[j].Lower == i {
				tech.Vias[j] = v
				replaced = true
				break
			}
		}
		if !replaced {
			tech.Vias = append(tech.Vias, v)
		}
	}
	if err := tech.Validate(); err != nil {
		return err
	}
	for _, o := range lg.obstructions {
		// Numbered layers count from 1 here.
		var (
			l   int
			err error
		)
		if k, aerr := strconv.Atoi(o.layer); aerr == nil {
			l, err = tech.LayerIndex(strconv.Itoa(k - 1))
		} else {
			l, err = tech.LayerIndex(o.layer)
		}
		if err != nil {
			return fmt.Errorf("config: obstruction: %w", err)
		}
		d.Obstructions = append(d.Obstructions, db.Shape{Layer: l, Rect: o.rect})
	}
	return nil
}
