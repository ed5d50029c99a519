package passes

import (
	"fmt"
	"strings"
)

// Level selects the pass list and the inliner tuning
type Level string

const (
	LevelNone Level = "none"
	LevelO2   Level = "O2"
	LevelO3   Level = "O3"
	LevelOs   Level = "Os"
)

// ParseLevel accepts the level names case-insensitively, with or without
// the leading O
func ParseLevel(s string) (Level, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimPrefix(s, "-")), "o") {
	case "none", "0", "":
		return LevelNone, nil
	case "2":
		return LevelO2, nil
	case "3":
		return LevelO3, nil
	case "s":
		return LevelOs, nil
	}
	return "", fmt.Errorf("unknown optimization level %q", s)
}

// Tuning holds the level defaults for the Context-level inliner
type Tuning struct {
	InlineBudget    int
	InlineDepth     int
	InlineMaxGrowth int
}

func (l Level) Tuning() Tuning {
	switch l {
	case LevelNone:
		return Tuning{}
	case LevelO3:
		return Tuning{InlineBudget: 64, InlineDepth: 4, InlineMaxGrowth: 4096}
	case LevelOs:
		return Tuning{InlineBudget: 8, InlineDepth: 1, InlineMaxGrowth: 256}
	}
	return Tuning{InlineBudget: 24, InlineDepth: 2, InlineMaxGrowth: 1024}
}

// DisableFlags maps the per-pass switch names to pass names
var DisableFlags = map[string]string{
	"mem2var":             "Mem2Var",
	"sccp":                "SCCP",
	"algebraic":           "Algebraic",
	"assert_elimination":  "AssertElimination",
	"branch_optimization": "BranchOptimization",
	"cse":                 "CSE",
	"remove_unused":       "RemoveUnused",
	"simplify_cfg":        "SimplifyCFG",
	"tail_merge":          "TailMerge",
}

func (l Level) passes() []Pass {
	switch l {
	case LevelNone:
		return []Pass{MakeSSA{}, RemoveUnused{}}
	case LevelO3:
		return []Pass{
			Mem2Var{}, MakeSSA{},
			SCCP{}, Algebraic{}, AssertElimination{}, BranchOptimization{}, CSE{}, RemoveUnused{},
			TailMerge{}, SimplifyCFG{},
			SCCP{}, Algebraic{}, AssertElimination{}, BranchOptimization{}, CSE{}, RemoveUnused{},
		}
	case LevelOs:
		return []Pass{
			Mem2Var{}, MakeSSA{},
			SCCP{}, Algebraic{}, AssertElimination{}, BranchOptimization{}, CSE{}, RemoveUnused{},
			TailMerge{}, SimplifyCFG{}, RemoveUnused{},
		}
	}
	return []Pass{
		Mem2Var{}, MakeSSA{},
		SCCP{}, Algebraic{}, AssertElimination{}, BranchOptimization{}, CSE{}, RemoveUnused{},
		SimplifyCFG{}, RemoveUnused{},
	}
}

// BuildPipeline assembles and validates the pass list of a level with the
// disabled passes removed. disable is keyed by DisableFlags names.
func BuildPipeline(level Level, disable map[string]bool, maxIterations int) (*Pipeline, error) {
	off := map[string]bool{}
	for flag, on := range disable {
		name, ok := DisableFlags[flag]
		if !ok {
			return nil, fmt.Errorf("unknown pass switch %q", flag)
		}
		off[name] = on
	}

	var list []Pass
	for _, p := range level.passes() {
		if !off[p.Name()] {
			list = append(list, p)
		}
	}
	p := NewPipeline(string(level), list...)
	if maxIterations > 0 {
		p.MaxIterations = maxIterations
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
