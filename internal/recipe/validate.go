package recipe

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"

	"ilclone/internal/common"
	"ilclone/internal/diagnostic"
	"ilclone/internal/il"
)

// Diagnostic codes reported by Validate.
const (
	CodeMissingSource  = "missing_source"
	CodeMissingTarget  = "missing_target"
	CodeTargetShape    = "target_shape"
	CodeTargetModules  = "target_modules"
	CodeWeaveMatch     = "weave_match"
	CodeWeaveKind      = "weave_kind"
	CodeWeaveAction    = "weave_action"
	CodeWeaveAccess    = "weave_access"
	CodeWrapTarget     = "wrap_target"
	CodeWrapMethod     = "wrap_method"
	CodeUnknownVersion = "unknown_version"
)

// Validate reports every problem of r that can be found without loading
// modules.
func Validate(r *Recipe) diagnostic.Diagnostics {
	var d diagnostic.Diagnostics

	if r.Version != "1" {
		d.AddError(CodeUnknownVersion, fmt.Sprintf("unsupported recipe version %q", r.Version), "version")
	}

	if r.Source.Module == "" || r.Source.Type == "" {
		d.AddError(CodeMissingSource, "source needs a module and a type", "source")
	}

	validateTargets(&d, r.Targets)

	for i, w := range r.Weaves {
		validateWeave(&d, w, fmt.Sprintf("weaves[%d]", i))
	}

	if r.Wrap != nil {
		if len(r.Targets) != 1 || !r.Targets[0].Merging() {
			d.AddError(CodeWrapTarget, "wrap needs exactly one existing target type", "wrap")
		}

		if r.Wrap.Method == "" || r.Wrap.Wrapper == "" {
			d.AddError(CodeWrapMethod, "wrap needs a method and a wrapper", "wrap")
		}
	}

	return d
}

func validateTargets(d *diagnostic.Diagnostics, targets []Target) {
	if len(targets) == 0 {
		d.AddError(CodeMissingTarget, "at least one target is required", "targets")
		return
	}

	for i, t := range targets {
		where := fmt.Sprintf("targets[%d]", i)

		switch {
		case t.Module == "":
			d.AddError(CodeMissingTarget, "target needs a module", where)
		case t.Merging() && t.Name != "":
			d.AddError(CodeTargetShape, "target names both an existing type and a fresh name", where,
				"drop either type or name")
		case !t.Merging() && t.Name == "":
			d.AddError(CodeTargetShape, "target names neither an existing type nor a fresh name", where)
		}

		if t.Module != targets[0].Module {
			d.AddError(CodeTargetModules, "all targets must live in one module", where,
				"split the recipe per target module")
		}
	}
}

func validateWeave(d *diagnostic.Diagnostics, w Weave, where string) {
	if w.Match == "" {
		d.AddError(CodeWeaveMatch, "weave needs a name to match", where)
	}

	if w.Kind != "" {
		if _, ok := parseKind(w.Kind); !ok {
			d.AddError(CodeWeaveKind, fmt.Sprintf("unknown element kind %q", w.Kind), where,
				didYouMean(w.Kind, kindNames())...)
		}
	}

	if w.Rename == "" && w.Access == "" {
		d.AddError(CodeWeaveAction, "weave neither renames nor changes access", where)
	}

	if w.Access != "" {
		if _, ok := accessLevels[w.Access]; !ok {
			d.AddError(CodeWeaveAccess, fmt.Sprintf("unknown access %q", w.Access), where,
				didYouMean(w.Access, accessNames())...)
		}
	}
}

func accessNames() []string {
	names := maps.Keys(accessLevels)
	slices.Sort(names)

	return names
}

func kindNames() []string {
	names := make([]string, 0, il.KindTotal-1)
	for k := il.Kind(1); int(k) < il.KindTotal; k++ {
		names = append(names, strings.ToLower(k.String()))
	}

	return names
}

// didYouMean offers the closest candidate, or all of them.
func didYouMean(name string, candidates []string) []string {
	if c, ok := common.Closest(name, candidates); ok {
		return []string{fmt.Sprintf("did you mean %q?", c)}
	}

	return []string{"use one of " + strings.Join(candidates, ", ")}
}

func parseKind(name string) (il.Kind, bool) {
	for k := il.Kind(1); int(k) < il.KindTotal; k++ {
		if strings.EqualFold(k.String(), name) {
			return k, true
		}
	}

	return 0, false
}
