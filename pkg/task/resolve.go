package task

import (
	"strings"
)

// ParseRef splits a `Name@Version` task reference. Version may be a
// bare major ("2") or a full `M.m.p` ("2.1.0").
func ParseRef(ref string) (name, version string, err error) {
	parts := strings.SplitN(ref, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", manifestErr("malformed task reference %q, want Name@Version", ref)
	}
	return parts[0], parts[1], nil
}

// MergeInputs overlays provided input values on top of manifest
// defaults, then validates every required input, honoring visibleRule
// guards of the form "otherInput = value" / "otherInput != value" —
// a required input guarded by an unset otherInput is not required.
func MergeInputs(m *Manifest, provided map[string]string) (map[string]string, error) {
	merged := make(map[string]string, len(m.Inputs))
	for _, in := range m.Inputs {
		if v, ok := provided[in.Name]; ok {
			merged[in.Name] = v
		} else if in.DefaultValue != "" {
			merged[in.Name] = in.DefaultValue
		}
	}
	// Carry through any extra caller-provided values not declared by
	// the manifest, same tolerant behavior as template parameters.
	for k, v := range provided {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}

	for _, in := range m.Inputs {
		if !in.Required {
			continue
		}
		if !visibleRuleApplies(in.VisibleRule, provided) {
			continue
		}
		if strings.TrimSpace(merged[in.Name]) == "" {
			return nil, inputErr("task %q: required input %q is missing", m.Name, in.Name)
		}
	}

	return merged, nil
}

// visibleRuleApplies reports whether a required input's guard condition
// holds. An empty rule always applies. A rule referencing an input that
// was never provided does not apply — the requirement is skipped.
func visibleRuleApplies(rule string, provided map[string]string) bool {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return true
	}
	op := "="
	idx := strings.Index(rule, "!=")
	if idx >= 0 {
		op = "!="
	} else {
		idx = strings.Index(rule, "=")
	}
	if idx < 0 {
		return true
	}
	opLen := len(op)
	other := strings.TrimSpace(rule[:idx])
	want := strings.TrimSpace(rule[idx+opLen:])

	got, ok := provided[other]
	if !ok {
		return false
	}
	if op == "!=" {
		return got != want
	}
	return got == want
}

// BuildEnv produces the INPUT_<NAME> plus agent-context environment
// variables for a task invocation.
func BuildEnv(inputs map[string]string, workingDir string) map[string]string {
	env := make(map[string]string, len(inputs)+3)
	for name, value := range inputs {
		env["INPUT_"+envKey(name)] = value
	}
	env["AGENT_TEMPDIRECTORY"] = workingDir
	env["AGENT_WORKFOLDER"] = workingDir
	env["SYSTEM_DEFAULTWORKINGDIRECTORY"] = workingDir
	return env
}

func envKey(name string) string {
	r := strings.NewReplacer(".", "_", " ", "_")
	return strings.ToUpper(r.Replace(name))
}
