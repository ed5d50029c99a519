package passes

import (
	"stackc/internal/errors"
)

// ValidateOrder checks the ordering constraints each pass declares
func ValidateOrder(pipeline string, list []Pass) error {
	names := make([]string, len(list))
	first := map[string]int{}
	last := map[string]int{}
	for i, p := range list {
		names[i] = p.Name()
		if _, ok := first[names[i]]; !ok {
			first[names[i]] = i
		}
		last[names[i]] = i
	}

	for i, p := range list {
		if c, ok := p.(runsAfter); ok && len(c.RunsAfter()) > 0 {
			satisfied := false
			for _, want := range c.RunsAfter() {
				if idx, ok := first[want]; ok && idx < i {
					satisfied = true
				}
			}
			if !satisfied {
				return errors.NewPassOrder(pipeline, names[i], i, "after", c.RunsAfter())
			}
		}
		if c, ok := p.(runsBefore); ok && len(c.RunsBefore()) > 0 {
			satisfied := false
			for _, want := range c.RunsBefore() {
				if idx, ok := last[want]; ok && idx > i {
					satisfied = true
				}
			}
			if !satisfied {
				return errors.NewPassOrder(pipeline, names[i], i, "before", c.RunsBefore())
			}
		}
		if c, ok := p.(runsImmediatelyAfter); ok && len(c.RunsImmediatelyAfter()) > 0 {
			actual := "<start>"
			if i > 0 {
				actual = names[i-1]
			}
			if !contains(c.RunsImmediatelyAfter(), actual) {
				return errors.NewPassOrder(pipeline, names[i], i, "immediately after", c.RunsImmediatelyAfter())
			}
		}
		if c, ok := p.(runsImmediatelyBefore); ok && len(c.RunsImmediatelyBefore()) > 0 {
			actual := "<end>"
			if i+1 < len(names) {
				actual = names[i+1]
			}
			if !contains(c.RunsImmediatelyBefore(), actual) {
				return errors.NewPassOrder(pipeline, names[i], i, "immediately before", c.RunsImmediatelyBefore())
			}
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
