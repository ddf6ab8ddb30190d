package rules

import (
	"strings"

	"github.com/nathoo/qicore/types"
)

// Unmet returns the requirements the session does not satisfy, in
// declaration order.
func Unmet(requirements []types.Condition, s types.SessionState) []types.Condition {
	var out []types.Condition
	for _, c := range requirements {
		if !EvalCondition(c, s) {
			out = append(out, c)
		}
	}
	return out
}

// CanLearn reports whether the session meets a technique's requirements.
// When it does not, the reason lists every unmet requirement.
func CanLearn(tech types.Technique, s types.SessionState) (bool, string) {
	unmet := Unmet(tech.Requirements, s)
	if len(unmet) == 0 {
		return true, ""
	}
	parts := make([]string, len(unmet))
	for i, c := range unmet {
		parts[i] = Describe(c)
	}
	return false, "requires " + strings.Join(parts, ", ")
}
