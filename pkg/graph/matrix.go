package graph

import (
	"fmt"
	"sort"

	"github.com/azlocal/pipeline/pkg/pipeline"
)

// JobInstance is one concrete expansion of a job: either the job
// itself (no strategy), or one matrix/parallel instance with its
// iteration variables.
type JobInstance struct {
	MatrixInstance string
	Variables      map[string]string
}

// ExpandStrategy expands a job's Strategy into its concrete instances.
// A job with no strategy yields a single unnamed instance. Inline
// matrix yields one instance per named entry, sorted by name for
// determinism. Parallel: N generates N instances named "Job 1".."Job
// N" with System.JobPositionInPhase/System.TotalJobsInPhase set.
// Expression-form matrices (MatrixExpr) are deferred: they expand to
// no instances, leaving execution to the runtime.
func ExpandStrategy(s *pipeline.Strategy) []JobInstance {
	if s == nil {
		return []JobInstance{{}}
	}
	if s.MatrixExpr != "" {
		return nil
	}
	if len(s.Matrix) > 0 {
		names := make([]string, 0, len(s.Matrix))
		for name := range s.Matrix {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]JobInstance, 0, len(names))
		for _, name := range names {
			vars := make(map[string]string, len(s.Matrix[name]))
			for k, v := range s.Matrix[name] {
				vars[k] = v
			}
			out = append(out, JobInstance{MatrixInstance: name, Variables: vars})
		}
		return out
	}
	if s.Parallel > 0 {
		out := make([]JobInstance, 0, s.Parallel)
		for i := 1; i <= s.Parallel; i++ {
			out = append(out, JobInstance{
				MatrixInstance: fmt.Sprintf("Job %d", i),
				Variables: map[string]string{
					"System.JobPositionInPhase": fmt.Sprintf("%d", i),
					"System.TotalJobsInPhase":   fmt.Sprintf("%d", s.Parallel),
				},
			})
		}
		return out
	}
	return []JobInstance{{}}
}
