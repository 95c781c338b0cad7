package scoring

import (
	"fmt"
	"math"

	"jobmate/matching-service/internal/model"
	"jobmate/matching-service/internal/textnorm"
)

// Component names as they appear in persisted reasons.
const (
	ComponentSemantic = "semantic"
	ComponentSkill    = "skill"
	ComponentSalary   = "salary"
	ComponentLocation = "location"
)

// Weights of the four blended signals.
type Weights struct {
	Semantic float64
	Skill    float64
	Salary   float64
	Location float64
}

// DefaultWeights is the starting configuration: 0.5/0.3/0.1/0.1.
var DefaultWeights = Weights{Semantic: 0.5, Skill: 0.3, Salary: 0.1, Location: 0.1}

// Sum of all weights.
func (w Weights) Sum() float64 { return w.Semantic + w.Skill + w.Salary + w.Location }

// Validate requires every weight in [0, 1] and a sum of 1 (within 1e-6).
func (w Weights) Validate() error {
	named := []struct {
		name string
		v    float64
	}{
		{ComponentSemantic, w.Semantic},
		{ComponentSkill, w.Skill},
		{ComponentSalary, w.Salary},
		{ComponentLocation, w.Location},
	}
	for _, n := range named {
		if math.IsNaN(n.v) || n.v < 0 || n.v > 1 {
			return fmt.Errorf("weight %s=%v outside [0,1]", n.name, n.v)
		}
	}
	if s := w.Sum(); math.Abs(s-1) > 1e-6 {
		return fmt.Errorf("weights sum to %v, want 1", s)
	}
	return nil
}

// Components holds the four signal values, each in [0, 1].
type Components struct {
	Semantic float64
	Skill    float64
	Salary   float64
	Location float64
}

// Blend is the weighted average of c. It divides by the weight sum so the
// result stays in [0, 1] even for weights that do not sum to exactly 1, and
// clamps against rounding drift.
func Blend(w Weights, c Components) float64 {
	sum := w.Sum()
	if sum <= 0 {
		return 0
	}
	raw := (w.Semantic*c.Semantic + w.Skill*c.Skill + w.Salary*c.Salary + w.Location*c.Location) / sum
	return clamp(raw, 0, 1)
}

// Params tunes a Scorer.
type Params struct {
	Weights Weights
	// SalaryDecayRatio is the relative gap at which salary fit reaches 0.
	SalaryDecayRatio float64
	// HybridCredit is the partial location credit for hybrid compatibility.
	HybridCredit float64
}

// DefaultParams returns the starting configuration.
func DefaultParams() Params {
	return Params{Weights: DefaultWeights, SalaryDecayRatio: 0.5, HybridCredit: 0.5}
}

// Input is everything needed to score one (resume, job) pair.
type Input struct {
	ResumeEmbedding *model.Embedding
	ResumeSkills    []string
	Job             *model.JobPosting
	Preference      *model.UserPreference // nil means no constraint
}

// Result is a raw score with its explanation.
type Result struct {
	Score      float64
	Components Components
	Reasons    model.MatchReasons
}

// Scorer computes raw scores. It holds only configuration and is safe for
// concurrent use.
type Scorer struct {
	params Params
}

// NewScorer validates params and returns a Scorer.
func NewScorer(p Params) (*Scorer, error) {
	if err := p.Weights.Validate(); err != nil {
		return nil, err
	}
	if p.HybridCredit < 0 || p.HybridCredit > 1 {
		return nil, fmt.Errorf("hybrid credit %v outside [0,1]", p.HybridCredit)
	}
	if p.SalaryDecayRatio <= 0 {
		return nil, fmt.Errorf("salary decay ratio must be positive, got %v", p.SalaryDecayRatio)
	}
	return &Scorer{params: p}, nil
}

// Params returns the configuration in use.
func (s *Scorer) Params() Params { return s.params }

// Score computes the raw score of in.Job for the resume. It fails with
// ErrIncompatibleEmbeddingVersion or ErrMalformedJob; every other gap in the
// input falls back to a neutral component.
func (s *Scorer) Score(in Input) (Result, error) {
	if in.Job == nil {
		return Result{}, fmt.Errorf("%w: nil job", ErrMalformedJob)
	}
	w := s.params.Weights

	semantic, err := SemanticFit(in.ResumeEmbedding, in.Job.Embedding)
	if err != nil {
		return Result{}, err
	}

	skill, matched, missing := SkillFit(in.ResumeSkills, in.Job.RequiredSkills)

	var prefMin, prefMax *int
	if in.Preference != nil {
		prefMin, prefMax = in.Preference.MinSalary, in.Preference.MaxSalary
	}
	salary, salaryDetail, err := SalaryFit(in.Job.SalaryMin, in.Job.SalaryMax, prefMin, prefMax, s.params.SalaryDecayRatio)
	if err != nil {
		return Result{}, err
	}

	location, locationDetail := LocationFit(in.Job, in.Preference, s.params.HybridCredit)

	c := Components{Semantic: semantic, Skill: skill, Salary: salary, Location: location}
	score := Blend(w, c)

	semanticDetail := fmt.Sprintf("semantic similarity %.2f", semantic)
	if in.ResumeEmbedding.Empty() || in.Job.Embedding.Empty() {
		semanticDetail = "no embedding available, neutral semantic score"
	}
	skillDetail := fmt.Sprintf("matched %d of %d required skills", len(matched), len(matched)+len(missing))
	if len(matched)+len(missing) == 0 {
		skillDetail = "no required skills listed"
	}

	reasons := model.MatchReasons{
		Components: []model.ScoreComponent{
			{Name: ComponentSemantic, Value: Round4(semantic), Weight: w.Semantic, Detail: semanticDetail},
			{Name: ComponentSkill, Value: Round4(skill), Weight: w.Skill, Detail: skillDetail},
			{Name: ComponentSalary, Value: Round4(salary), Weight: w.Salary, Detail: salaryDetail},
			{Name: ComponentLocation, Value: Round4(location), Weight: w.Location, Detail: locationDetail},
		},
		RawScore:      Round4(score),
		MatchedSkills: matched,
		MissingSkills: missing,
		Summary:       summarize(skillDetail, salaryDetail, locationDetail, in),
	}

	return Result{Score: score, Components: c, Reasons: reasons}, nil
}

func summarize(skillDetail, salaryDetail, locationDetail string, in Input) []string {
	lines := []string{skillDetail}
	if salaryDetail != "" {
		lines = append(lines, salaryDetail)
	}
	if locationDetail != "" {
		lines = append(lines, locationDetail)
	}
	if in.Preference != nil {
		if title, ok := preferredTitle(in.Job.Title, in.Preference.PreferredTitles); ok {
			lines = append(lines, fmt.Sprintf("title matches preferred title %q", title))
		}
	}
	return lines
}

// preferredTitle returns the first preferred title whose keywords all occur
// among the job title's keywords, in any order.
func preferredTitle(jobTitle string, preferred []string) (string, bool) {
	have := make(map[string]struct{})
	for _, k := range textnorm.TitleKeywords(jobTitle) {
		have[k] = struct{}{}
	}
	if len(have) == 0 {
		return "", false
	}
	for _, p := range preferred {
		want := textnorm.TitleKeywords(p)
		if len(want) == 0 {
			continue
		}
		all := true
		for _, k := range want {
			if _, ok := have[k]; !ok {
				all = false
				break
			}
		}
		if all {
			return p, true
		}
	}
	return "", false
}
