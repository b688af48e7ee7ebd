package normalize

import (
	"github.com/Dicklesworthstone/taskmon/internal/model"
	"github.com/Dicklesworthstone/taskmon/internal/raw"
)

// Candidate field names, most specific first. The lower-case variants come
// from older systeminformation releases.
var (
	coreLoadKeys   = []string{"load", "loadCombined", "currentLoad"}
	coreUserKeys   = []string{"loadUser", "user", "currentLoadUser"}
	coreSystemKeys = []string{"loadSystem", "system", "currentLoadSystem"}

	overallKeys = []string{"overall", "currentLoad", "currentload"}
	userKeys    = []string{"user", "currentLoadUser", "currentload_user"}
	systemKeys  = []string{"system", "currentLoadSystem", "currentload_system"}
)

// Cores normalizes per-core records. Nil records are skipped but indices
// still follow the source position.
func Cores(recs []raw.Record) []model.CoreLoad {
	out := make([]model.CoreLoad, 0, len(recs))
	for i, rec := range recs {
		if rec == nil {
			continue
		}
		out = append(out, model.CoreLoad{
			Index:      i,
			Load:       rec.FloatOr(0, coreLoadKeys...),
			UserLoad:   rec.FloatOr(0, coreUserKeys...),
			SystemLoad: rec.FloatOr(0, coreSystemKeys...),
		})
	}
	return out
}

// CPU resolves overall, user and system load from the top-level fields and
// falls back to the per-core mean for any value the source left out.
func CPU(load *raw.CPULoad) model.CPULoad {
	if load == nil {
		return model.CPULoad{Cores: []model.CoreLoad{}}
	}
	cores := Cores(load.Cores)

	overall, ok := load.Fields.Float(overallKeys...)
	if !ok {
		overall = coreMean(cores, func(c model.CoreLoad) float64 { return c.Load })
	}
	user, ok := load.Fields.Float(userKeys...)
	if !ok {
		user = coreMean(cores, func(c model.CoreLoad) float64 { return c.UserLoad })
	}
	system, ok := load.Fields.Float(systemKeys...)
	if !ok {
		system = coreMean(cores, func(c model.CoreLoad) float64 { return c.SystemLoad })
	}

	return model.CPULoad{
		Overall: overall,
		User:    user,
		System:  system,
		Cores:   cores,
	}
}

func coreMean(cores []model.CoreLoad, field func(model.CoreLoad) float64) float64 {
	if len(cores) == 0 {
		return 0
	}
	var sum float64
	for _, c := range cores {
		sum += field(c)
	}
	return sum / float64(len(cores))
}
