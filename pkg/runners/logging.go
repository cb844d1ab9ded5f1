package runners

import (
	"regexp"
	"strings"
)

// SetVariableCmd is one ##vso[task.setvariable] line.
type SetVariableCmd struct {
	Name     string
	Value    string
	IsOutput bool
	IsSecret bool
}

// LogResult is the accumulated side effects parsed out of a step's
// stdout, per the §4.5 logging-command grammar. Unknown ##vso[...]
// lines are left as ordinary output and have no effect here.
type LogResult struct {
	SetVariables []SetVariableCmd
	PrependPaths []string
	UploadFiles  []string
	BuildTags    []string
	TaskResult   string
}

var vsoLineRe = regexp.MustCompile(`^##vso\[([a-zA-Z0-9_.]+)([^\]]*)\](.*)$`)

// ParseLoggingCommands scans stdout line by line for ##vso[...]
// commands and returns their accumulated effect.
func ParseLoggingCommands(stdout string) *LogResult {
	result := &LogResult{}
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimRight(line, "\r")
		m := vsoLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		verb, propsStr, value := m[1], m[2], m[3]
		props := parseProps(propsStr)

		switch verb {
		case "task.setvariable":
			result.SetVariables = append(result.SetVariables, SetVariableCmd{
				Name:     props["variable"],
				Value:    value,
				IsOutput: isTrue(props["isoutput"]),
				IsSecret: isTrue(props["issecret"]),
			})
		case "task.prependpath":
			result.PrependPaths = append(result.PrependPaths, value)
		case "task.uploadfile":
			result.UploadFiles = append(result.UploadFiles, value)
		case "build.addbuildtag":
			result.BuildTags = append(result.BuildTags, value)
		case "task.complete":
			result.TaskResult = props["result"]
		}
	}
	return result
}

func parseProps(s string) map[string]string {
	props := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		props[strings.ToLower(strings.TrimSpace(kv[0]))] = strings.TrimSpace(kv[1])
	}
	return props
}

func isTrue(s string) bool {
	return strings.EqualFold(s, "true")
}
