package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/geom"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	p := cfg.Params()
	assert.Equal(t, 1, p.Costs.Segment)
	assert.Equal(t, 5, p.Costs.Via)
	assert.Equal(t, 10, p.NumPasses)
	assert.Equal(t, OrderMostNodes, cfg.NetOrder)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero segment cost", func(c *Config) { c.Costs.Segment = 0 }, true},
		{"no passes", func(c *Config) { c.Passes = 0 }, true},
		{"bad order", func(c *Config) { c.NetOrder = "random" }, true},
		{"bad mask", func(c *Config) { c.Mask.Mode = "everything" }, true},
		{"halo too wide", func(c *Config) { c.Mask.Halo = 300 }, true},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bbox order", func(c *Config) { c.NetOrder = OrderBBox }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "router.yaml")
	data := `
costs:
  via: 8
  conflict: 100
passes: 4
net_order: bbox
mask:
  mode: bbox
critical_nets: [clk]
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Costs.Via)
	assert.Equal(t, 1, cfg.Costs.Segment, "unset fields keep defaults")
	assert.Equal(t, 100, cfg.Costs.Conflict)
	assert.Equal(t, 4, cfg.Passes)
	assert.Equal(t, OrderBBox, cfg.NetOrder)
	assert.Equal(t, MaskBBox, cfg.Mask.Mode)
	assert.Equal(t, []string{"clk"}, cfg.CriticalNets)
	assert.Equal(t, slog.LevelDebug, cfg.Level())

	require.NoError(t, os.WriteFile(path, []byte("passes: 0\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSetUnset(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Set("passes", "3"))
	assert.Equal(t, 3, cfg.Passes)
	require.NoError(t, cfg.Set("via_pattern", "Inverted"))
	assert.Equal(t, PatternInverted, cfg.ViaPattern)
	require.NoError(t, cfg.Set("critical", "clk"))
	require.NoError(t, cfg.Set("critical", "clk"))
	assert.Equal(t, []string{"clk"}, cfg.CriticalNets)
	require.NoError(t, cfg.Set("force_routable", "true"))
	assert.True(t, cfg.ForceRoutable)

	err := cfg.Set("passes", "0")
	assert.Error(t, err)
	assert.Equal(t, 3, cfg.Passes, "failed set leaves the value unchanged")

	err = cfg.Set("colour", "blue")
	assert.True(t, errors.Is(err, ErrUnknownKey))

	require.NoError(t, cfg.Unset("passes"))
	assert.Equal(t, DefaultConfig().Passes, cfg.Passes)
	require.NoError(t, cfg.Unset("critical"))
	assert.Empty(t, cfg.CriticalNets)
}

func TestSetCost(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.SetCost("xver", 7))
	assert.Equal(t, 7, cfg.Params().Costs.Crossover)
	assert.Error(t, cfg.SetCost("segment", 0))
	assert.Equal(t, 1, cfg.Costs.Segment)
	assert.True(t, errors.Is(cfg.SetCost("wire", 2), ErrUnknownKey))
	require.NoError(t, cfg.Unset("xver"))
	assert.Equal(t, 4, cfg.Costs.Crossover)
}

func TestParseLegacy(t *testing.T) {
	input := `# route configuration
Num_layers 2
layer_1_name metal1
layer_2_name metal2
layer_1_width 0.3
layer_2_width 0.3
layer_1_spacing 0.3
layer_2_spacing 0.3
layer_1_pitch 1
layer_2_pitch 1 2
layer_1_direction horizontal
layer_2_direction vertical
via_1_size 0.4
num_passes 5
route_via_cost 7
route_jog_cost 12
stack 1
do_not_route vdd gnd
route_priority clk
obstruction 1 1 2 2 metal2
obstruction 3 3 4 4 1
`
	cfg := DefaultConfig()
	lg, err := ParseLegacy("route.cfg", strings.NewReader(input), cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Passes)
	assert.Equal(t, 7, cfg.Costs.Via)
	assert.Equal(t, 12, cfg.Costs.Jog)
	assert.Equal(t, 1, cfg.StackedVias)
	assert.Equal(t, []string{"vdd", "gnd"}, cfg.IgnoredNets)
	assert.Equal(t, []string{"clk"}, cfg.CriticalNets)

	d := db.NewDesign("t", &db.Tech{}, geom.Rect{X2: 9, Y2: 9})
	require.NoError(t, lg.Apply(d))
	require.Len(t, d.Tech.Layers, 2)
	assert.Equal(t, "metal2", d.Tech.Layers[1].Name)
	assert.Equal(t, db.Vertical, d.Tech.Layers[1].Direction)
	assert.Equal(t, 2.0, d.Tech.Layers[1].PitchY)
	require.Len(t, d.Tech.Vias, 1)
	assert.Equal(t, 0.4, d.Tech.Vias[0].Width)
	require.Len(t, d.Obstructions, 2)
	assert.Equal(t, 1, d.Obstructions[0].Layer)
	assert.Equal(t, 0, d.Obstructions[1].Layer)
}

func TestParseLegacyErrors(t *testing.T) {
	for _, input := range []string{
		"bogus_key 1\n",
		"num_passes\n",
		"layer_1_width wide\n",
		"num_passes 0\n",
	} {
		_, err := ParseLegacy("bad.cfg", strings.NewReader(input), DefaultConfig())
		assert.Error(t, err, input)
	}
}
