package script

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes router scripts. Commands end at a newline or ';'.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "EOL", Pattern: `[\n\r;]+`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Number", Pattern: `[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`},
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Ident", Pattern: `[A-Za-z_./][A-Za-z0-9_.\-\[\]/<>:]*`},
})

// Script is a parsed command script.
type Script struct {
	Commands []*Command `( @@ | EOL )*`
}

// Command is one script command. Exactly one field is set.
type Command struct {
	Pos lexer.Position

	Stage1    *Stage1Cmd    `  @@`
	Stage2    *Stage2Cmd    `| @@`
	Stage3    *Stage3Cmd    `| @@`
	Ripup     *RipupCmd     `| @@`
	Route     *RouteCmd     `| @@`
	Failed    *FailedCmd    `| @@`
	SetCost   *SetCostCmd   `| @@`
	Set       *SetCmd       `| @@`
	Unset     *UnsetCmd     `| @@`
	Congested *CongestedCmd `| @@`
	Verify    *VerifyCmd    `| @@`
	Write     *WriteCmd     `| @@`
	Quit      *QuitCmd      `| @@`
}

type Stage1Cmd struct {
	Keyword string `@"stage1"`
}

// Stage2Cmd is "stage2 [mask MODE] [limit N] [effort N]".
type Stage2Cmd struct {
	Keyword string       `@"stage2"`
	Options []*Stage2Opt `@@*`
}

type Stage2Opt struct {
	Key   string `@("mask" | "limit" | "effort")`
	Value *Value `@@`
}

type Stage3Cmd struct {
	Keyword string `@"stage3"`
}

// RipupCmd is "ripup net NAME", "ripup all" or "ripup failed".
type RipupCmd struct {
	Keyword string       `@"ripup"`
	Target  *RipupTarget `@@`
}

type RipupTarget struct {
	Net    *string `  "net" @(Ident | String)`
	All    bool    `| @"all"`
	Failed bool    `| @"failed"`
}

type RouteCmd struct {
	Keyword string `@"route"`
	Net     string `@(Ident | String)`
}

// FailedCmd is "failed [summary]".
type FailedCmd struct {
	Keyword string `@"failed"`
	Summary bool   `@"summary"?`
}

type SetCmd struct {
	Keyword string   `@"set"`
	Key     string   `@Ident`
	Values  []*Value `@@+`
}

type UnsetCmd struct {
	Keyword string `@"unset"`
	Key     string `@Ident`
}

type SetCostCmd struct {
	Keyword string `@"setcost"`
	Name    string `@Ident`
	Value   int    `@Number`
}

// CongestedCmd is "congested [N]".
type CongestedCmd struct {
	Keyword string `@"congested"`
	Count   *int   `@Number?`
}

type VerifyCmd struct {
	Keyword string `@"verify"`
}

type WriteCmd struct {
	Keyword string `@"write"`
	File    string `@(Ident | String)`
}

type QuitCmd struct {
	Keyword string `@("quit" | "exit")`
}

// Value is a number or a word.
type Value struct {
	Number *string `  @Number`
	Word   *string `| @(Ident | String)`
}

func (v *Value) String() string {
	if v.Number != nil {
		return *v.Number
	}
	return *v.Word
}

func joinValues(vs []*Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = strings.TrimSpace(v.String())
	}
	return out
}

var parser = participle.MustBuild[Script](
	participle.Lexer(Lexer),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)
