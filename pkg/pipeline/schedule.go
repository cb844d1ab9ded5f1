package pipeline

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ValidateSchedules checks every schedules[].cron entry parses as a
// standard five-field cron expression. Schedule triggers themselves
// are external to this executor (no background scheduler runs here);
// this only guards against a malformed cron string being accepted
// silently by the YAML decoder.
func ValidateSchedules(doc *Document) []*ValidationError {
	if len(doc.Schedules) == 0 {
		return nil
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	var errs []*ValidationError
	for i, sched := range doc.Schedules {
		if _, err := parser.Parse(sched.Cron); err != nil {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("schedules[%d].cron", i),
				Message:  fmt.Sprintf("invalid cron expression %q: %v", sched.Cron, err),
				Severity: "error",
			})
		}
	}
	return errs
}
