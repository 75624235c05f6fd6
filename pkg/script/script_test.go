package script

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrcad/xictools-sub010/pkg/config"
	"github.com/wrcad/xictools-sub010/pkg/db"
	"github.com/wrcad/xictools-sub010/pkg/geom"
	"github.com/wrcad/xictools-sub010/pkg/router"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func square(l, x, y int) db.Shape {
	return db.Shape{Layer: l, Rect: geom.NewRect(float64(x)-0.2, float64(y)-0.2, float64(x)+0.2, float64(y)+0.2)}
}

func newSession(t *testing.T) (*Session, *router.Router, *bytes.Buffer) {
	t.Helper()
	tech := &db.Tech{
		Layers: []db.Layer{
			{Name: "m1", Direction: db.Horizontal, PitchX: 1, PitchY: 1, Width: 0.3, Spacing: 0.3},
			{Name: "m2", Direction: db.Vertical, PitchX: 1, PitchY: 1, Width: 0.3, Spacing: 0.3},
		},
		Vias: []db.Via{{Name: "v12", Lower: 0, Width: 0.4, Height: 0.4}},
	}
	d := db.NewDesign("top", tech, geom.Rect{X2: 9, Y2: 9})
	d.AddPort("a1", "a", square(0, 0, 0))
	d.AddPort("a2", "a", square(0, 9, 9))
	d.AddPort("b1", "b", square(0, 0, 9))
	d.AddPort("b2", "b", square(0, 9, 0))
	r, err := router.New(d, config.DefaultConfig(), router.WithLogger(quiet))
	require.NoError(t, err)
	var out bytes.Buffer
	return NewSession(r, &out, quiet), r, &out
}

func TestParse(t *testing.T) {
	src := `# route everything
stage1
stage2 mask bbox limit 4 effort 2; stage3
ripup net clk
ripup all
ripup failed
route "data bus"
failed summary
set critical a b
unset critical
setcost via 7
congested 5
verify
write "out file.routes"
quit
`
	sc, err := Parse("test", strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, sc.Commands, 15)

	c := sc.Commands
	assert.NotNil(t, c[0].Stage1)
	assert.Equal(t, 2, c[0].Pos.Line)
	require.NotNil(t, c[1].Stage2)
	opts, err := stage2Options(c[1].Stage2)
	require.NoError(t, err)
	assert.Equal(t, router.Stage2Options{Mask: "bbox", Limit: 4, Effort: 2}, opts)
	assert.NotNil(t, c[2].Stage3)
	require.NotNil(t, c[3].Ripup.Target.Net)
	assert.Equal(t, "clk", *c[3].Ripup.Target.Net)
	assert.True(t, c[4].Ripup.Target.All)
	assert.True(t, c[5].Ripup.Target.Failed)
	assert.Equal(t, "data bus", c[6].Route.Net)
	assert.True(t, c[7].Failed.Summary)
	assert.Equal(t, []string{"a", "b"}, joinValues(c[8].Set.Values))
	assert.Equal(t, "critical", c[9].Unset.Key)
	assert.Equal(t, 7, c[10].SetCost.Value)
	require.NotNil(t, c[11].Congested.Count)
	assert.Equal(t, 5, *c[11].Congested.Count)
	assert.NotNil(t, c[12].Verify)
	assert.Equal(t, "out file.routes", c[13].Write.File)
	assert.NotNil(t, c[14].Quit)
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"frobnicate",
		"stage2 mask",
		"ripup",
		"setcost via",
		"route",
	} {
		_, err := Parse("bad", strings.NewReader(src))
		assert.Error(t, err, src)
	}
}

func TestStage2OptionErrors(t *testing.T) {
	sc, err := Parse("t", strings.NewReader("stage2 limit 0"))
	require.NoError(t, err)
	_, err = stage2Options(sc.Commands[0].Stage2)
	require.Error(t, err)
}

func TestRunScript(t *testing.T) {
	s, r, out := newSession(t)
	file := filepath.Join(t.TempDir(), "top.routes")
	src := "stage1\nfailed summary\nverify\nwrite " + file + "\nquit\nstage3\n"

	require.NoError(t, s.Run(context.Background(), "run.scr", strings.NewReader(src)))
	assert.Contains(t, out.String(), "stage 1: 0 failed\n")
	assert.Contains(t, out.String(), "0 failed, 0 abandoned\n")
	assert.Contains(t, out.String(), "verify: ok\n")
	assert.NotContains(t, out.String(), "stage 3")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), r.RunID.String())
}

func TestRunReportsLine(t *testing.T) {
	s, _, _ := newSession(t)
	err := s.Run(context.Background(), "run.scr", strings.NewReader("stage1\nripup net nosuch\n"))
	require.ErrorIs(t, err, router.ErrUnknownNet)
	assert.Contains(t, err.Error(), "run.scr:2:")
}

func TestSettings(t *testing.T) {
	s, r, _ := newSession(t)
	ctx := context.Background()

	require.NoError(t, s.Exec(ctx, "set passes 5; setcost via 7; set critical b"))
	assert.Equal(t, 5, r.Config().Passes)
	assert.Equal(t, 7, r.Config().Costs.Via)
	assert.Equal(t, "b", r.Order()[0].Name)

	require.NoError(t, s.Exec(ctx, "unset critical; unset passes"))
	assert.Empty(t, r.Config().CriticalNets)
	assert.Equal(t, config.DefaultConfig().Passes, r.Config().Passes)
	assert.Equal(t, "a", r.Order()[0].Name)
	assert.False(t, r.Design().Net("b").Has(db.NetCritical))

	a := r.Design().Net("a")
	require.NoError(t, s.Exec(ctx, "set ignore a"))
	assert.False(t, a.Routable())
	require.NoError(t, s.Exec(ctx, "unset ignore"))
	assert.True(t, a.Routable())

	require.ErrorIs(t, s.Exec(ctx, "set bogus 1"), config.ErrUnknownKey)
	require.Error(t, s.Exec(ctx, "set passes 0"))
	assert.Equal(t, config.DefaultConfig().Passes, r.Config().Passes)
}

func TestRipupCommands(t *testing.T) {
	s, r, out := newSession(t)
	ctx := context.Background()

	require.NoError(t, s.Exec(ctx, "stage1"))
	require.NoError(t, s.Exec(ctx, "ripup net a"))
	out.Reset()
	require.NoError(t, s.Exec(ctx, "failed"))
	assert.Equal(t, "a\n", out.String())

	out.Reset()
	require.NoError(t, s.Exec(ctx, "route a"))
	assert.Equal(t, "net a routed\n", out.String())
	assert.Empty(t, r.FailedNets())

	require.NoError(t, s.Exec(ctx, "ripup all"))
	assert.Empty(t, r.Design().Net("a").Routes)
	assert.Empty(t, r.Design().Net("b").Routes)

	require.ErrorIs(t, s.Exec(ctx, "quit"), ErrQuit)
}
