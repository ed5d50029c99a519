package ir

import "strings"

// Mutation is the set of rewrite classes a pass performed. Analyses declare
// the classes that invalidate them.
type Mutation uint8

const (
	MutTerminators Mutation = 1 << iota
	MutBlocks
	MutInstructions
	MutOperands

	MutNone Mutation = 0
	MutAll           = MutTerminators | MutBlocks | MutInstructions | MutOperands
)

func (m Mutation) Has(other Mutation) bool { return m&other != 0 }

func (m Mutation) String() string {
	if m == MutNone {
		return "none"
	}
	var parts []string
	names := []string{"terminators", "blocks", "instructions", "operands"}
	for i, n := range names {
		if m&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "|")
}
