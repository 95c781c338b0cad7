package scoring

import (
	"fmt"
	"sort"
	"strings"

	"jobmate/matching-service/internal/model"
	"jobmate/matching-service/internal/textnorm"
)

// SkillFit is |resume ∩ required| / max(1, |required|). Skills are compared
// case-insensitively after trimming; callers pass canonical names. An empty
// required list scores 1.0. matched and missing are sorted.
func SkillFit(resumeSkills, required []string) (fit float64, matched, missing []string) {
	have := make(map[string]struct{}, len(resumeSkills))
	for _, s := range resumeSkills {
		if k := skillKey(s); k != "" {
			have[k] = struct{}{}
		}
	}

	want := make(map[string]struct{}, len(required))
	for _, s := range required {
		if k := skillKey(s); k != "" {
			want[k] = struct{}{}
		}
	}
	if len(want) == 0 {
		return 1.0, []string{}, []string{}
	}

	matched, missing = []string{}, []string{}
	for k := range want {
		if _, ok := have[k]; ok {
			matched = append(matched, k)
		} else {
			missing = append(missing, k)
		}
	}
	sort.Strings(matched)
	sort.Strings(missing)
	return float64(len(matched)) / float64(len(want)), matched, missing
}

func skillKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// salaryRange is a closed interval; hasLo/hasHi mark open ends.
type salaryRange struct {
	lo, hi       int
	hasLo, hasHi bool
}

func newSalaryRange(min, max *int) salaryRange {
	var r salaryRange
	if min != nil {
		r.lo, r.hasLo = *min, true
	}
	if max != nil {
		r.hi, r.hasHi = *max, true
	}
	return r
}

func (r salaryRange) unspecified() bool { return !r.hasLo && !r.hasHi }

// SalaryFit is 1.0 when the job's range and the preferred range overlap or
// either is unspecified. Otherwise it decays linearly with the gap, measured
// relative to the preferred bound that was missed: a gap of decayRatio times
// that bound (or more) scores 0.
//
// Negative amounts or an inverted job range make the job malformed. An
// inverted preferred range is read with its bounds swapped.
func SalaryFit(jobMin, jobMax, prefMin, prefMax *int, decayRatio float64) (float64, string, error) {
	for _, v := range []*int{jobMin, jobMax} {
		if v != nil && *v < 0 {
			return 0, "", fmt.Errorf("%w: negative salary %d", ErrMalformedJob, *v)
		}
	}
	if jobMin != nil && jobMax != nil && *jobMin > *jobMax {
		return 0, "", fmt.Errorf("%w: salary min %d above max %d", ErrMalformedJob, *jobMin, *jobMax)
	}
	if prefMin != nil && prefMax != nil && *prefMin > *prefMax {
		prefMin, prefMax = prefMax, prefMin
	}

	job := newSalaryRange(jobMin, jobMax)
	pref := newSalaryRange(prefMin, prefMax)
	if job.unspecified() || pref.unspecified() {
		return 1.0, "salary not specified", nil
	}

	var gap, reference int
	var detail string
	switch {
	case job.hasHi && pref.hasLo && job.hi < pref.lo:
		gap, reference = pref.lo-job.hi, pref.lo
		detail = fmt.Sprintf("salary %d below your minimum", gap)
	case job.hasLo && pref.hasHi && job.lo > pref.hi:
		gap, reference = job.lo-pref.hi, pref.hi
		detail = fmt.Sprintf("salary %d above your maximum", gap)
	default:
		return 1.0, "salary range compatible", nil
	}

	if reference <= 0 || decayRatio <= 0 {
		return 0, detail, nil
	}
	fit := 1 - (float64(gap)/float64(reference))/decayRatio
	return clamp(fit, 0, 1), detail, nil
}

// LocationFit multiplies a remote-posture fit by a place fit.
//
// Remote posture: no preference or "any" scores 1; an exact match scores 1;
// hybrid against a remote or onsite preference earns hybridCredit, as does
// remote against an onsite preference; onsite against a remote-only
// preference scores 0. A job with unknown posture is not penalized.
//
// Place: remote jobs, jobs without a location, and users without preferred
// locations score 1; otherwise the job location must contain one of the
// preferred locations.
func LocationFit(job *model.JobPosting, pref *model.UserPreference, hybridCredit float64) (float64, string) {
	if pref == nil {
		return 1.0, "no location preference"
	}

	posture := job.RemoteType
	if posture == model.RemoteUnspecified && textnorm.ContainsPhrase(job.Location, "remote") {
		posture = model.RemoteRemote
	}

	remote, remoteDetail := remoteFit(posture, pref.RemotePreference, hybridCredit)

	place, placeDetail := 1.0, ""
	switch {
	case len(pref.PreferredLocations) == 0, posture == model.RemoteRemote:
	case strings.TrimSpace(job.Location) == "":
	case textnorm.ContainsAny(job.Location, pref.PreferredLocations):
		placeDetail = "location matches preference"
	default:
		place, placeDetail = 0, "location outside preferred locations"
	}

	detail := remoteDetail
	if placeDetail != "" {
		if detail != "" {
			detail += "; "
		}
		detail += placeDetail
	}
	return remote * place, detail
}

func remoteFit(job, pref model.RemotePolicy, hybridCredit float64) (float64, string) {
	if pref == model.RemoteUnspecified || pref == model.RemoteAny || job == model.RemoteUnspecified || job == model.RemoteAny {
		return 1.0, ""
	}
	if job == pref {
		return 1.0, fmt.Sprintf("%s matches preference", job)
	}
	switch pref {
	case model.RemoteRemote:
		if job == model.RemoteHybrid {
			return hybridCredit, "hybrid partially compatible with remote preference"
		}
		return 0, "onsite job does not match remote preference"
	case model.RemoteHybrid:
		if job == model.RemoteRemote {
			return 1.0, "remote compatible with hybrid preference"
		}
		return hybridCredit, "onsite partially compatible with hybrid preference"
	case model.RemoteOnsite:
		return hybridCredit, fmt.Sprintf("%s partially compatible with onsite preference", job)
	}
	return 1.0, ""
}
