package coordinator

import (
	"time"

	"github.com/mkoziy/harvester/internal/sources"
)

// StatusDisabled marks a repository switched off in the repository list.
const StatusDisabled = "disabled"

// Report is the outcome of one run.
type Report struct {
	RunID        string
	Repositories []RepositoryReport
}

// RepositoryReport is the outcome for one repository. Status is one of the
// models.RunStatus values or StatusDisabled.
type RepositoryReport struct {
	Name         string
	RepositoryID int64
	Status       string
	Phase        Phase
	Crawl        sources.Result
	Stale        sources.Result
	Duration     time.Duration
	Err          error
}

func (r RepositoryReport) fail(status string, err error) RepositoryReport {
	r.Status = status
	r.Err = err
	return r
}

// Errors lists the record errors of the crawl and the stale pass, plus the
// error that ended the repository, if any.
func (r RepositoryReport) Errors() []string {
	errs := append(append([]string(nil), r.Crawl.Errors...), r.Stale.Errors...)
	if r.Err != nil {
		errs = append(errs, r.Err.Error())
	}
	return errs
}

func (r RepositoryReport) ErrorCount() int {
	return len(r.Crawl.Errors) + len(r.Stale.Errors)
}

// Count returns how many repositories ended with status.
func (r *Report) Count(status string) int {
	n := 0
	for _, rep := range r.Repositories {
		if rep.Status == status {
			n++
		}
	}
	return n
}

// Aborted returns the repositories stopped by their error budget.
func (r *Report) Aborted() []RepositoryReport {
	var out []RepositoryReport
	for _, rep := range r.Repositories {
		if rep.Phase == PhaseErrorBudgetExceeded {
			out = append(out, rep)
		}
	}
	return out
}
