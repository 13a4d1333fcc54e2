package appointment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

type departmentKeywords struct {
	department string
	keywords   []string
}

// defaultSymptomKeywords lists the symptom keywords handled by each seeded
// department. A keyword may belong to several departments.
var defaultSymptomKeywords = []departmentKeywords{
	{"General Practice", []string{"fever", "cold", "flu", "cough", "fatigue", "headache", "shortness of breath", "发烧", "感冒", "咳嗽", "头痛"}},
	{"Cardiology", []string{"chest pain", "chest tightness", "palpitations", "shortness of breath", "high blood pressure", "hypertension", "胸闷", "心悸"}},
	{"Dermatology", []string{"rash", "eczema", "acne", "itching", "hives", "psoriasis", "皮疹", "湿疹"}},
	{"Orthopedics", []string{"fracture", "sprain", "back pain", "joint pain", "knee pain", "骨折", "扭伤"}},
	{"Endocrinology", []string{"diabetes", "thyroid", "fatigue", "weight gain", "excessive thirst", "糖尿病"}},
	{"Neurology", []string{"headache", "dizziness", "migraine", "numbness", "seizure", "tremor", "头痛", "头晕"}},
	{"Pediatrics", []string{"child", "infant", "baby", "vaccination", "chickenpox", "儿童", "疫苗"}},
	{"Ophthalmology", []string{"blurred vision", "eye pain", "red eye", "cataract", "glaucoma", "conjunctivitis", "视力", "视物模糊"}},
	{"ENT", []string{"ear pain", "hearing loss", "tinnitus", "sore throat", "nosebleed", "sinusitis", "hoarseness", "耳鸣", "咽炎"}},
	{"Gastroenterology", []string{"stomach ache", "abdominal pain", "nausea", "vomiting", "diarrhea", "constipation", "indigestion", "heartburn", "腹痛", "腹泻"}},
}

// SymptomKeywords maps lower-case symptom keywords to the names of the
// departments treating them. Department names are matched case-insensitively.
var SymptomKeywords = keywordIndex(defaultSymptomKeywords)

func keywordIndex(table []departmentKeywords) map[string][]string {
	idx := make(map[string][]string)
	for _, row := range table {
		for _, kw := range row.keywords {
			idx[kw] = append(idx[kw], row.department)
		}
	}
	return idx
}

const (
	keywordScore  = 10
	maxMatchScore = 100
	// fuzzyMinWord is the shortest last word that can stand in for a
	// multi-word keyword.
	fuzzyMinWord = 5
)

type DepartmentRecommendation struct {
	Department      Department
	Score           int
	MatchedKeywords []string
	Reason          string
}

type SymptomAnalysis struct {
	Keywords        []string
	Recommendations []DepartmentRecommendation
}

// SymptomAnalyzer recommends departments from a free-text symptom
// description by keyword matching.
type SymptomAnalyzer struct {
	departments DepartmentDirectory
	keywords    map[string][]string
}

// NewSymptomAnalyzer uses SymptomKeywords when keywords is nil.
func NewSymptomAnalyzer(departments DepartmentDirectory, keywords map[string][]string) *SymptomAnalyzer {
	if keywords == nil {
		keywords = SymptomKeywords
	}
	return &SymptomAnalyzer{departments: departments, keywords: keywords}
}

// normalize lower-cases text and turns every run of non letters and digits
// into one space.
func normalize(text string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// ExtractKeywords returns the known keywords found in text, sorted.
// ASCII keywords match whole words; others match anywhere. A multi-word
// keyword also matches on its last word alone when that word is long enough.
func (a *SymptomAnalyzer) ExtractKeywords(text string) []string {
	clean := normalize(text)
	if clean == "" {
		return nil
	}
	padded := " " + clean + " "
	words := strings.Fields(clean)

	var found []string
	for key := range a.keywords {
		if matchesKeyword(key, padded, clean, words) {
			found = append(found, key)
		}
	}
	sort.Strings(found)
	return found
}

func matchesKeyword(key, padded, clean string, words []string) bool {
	if !isASCII(key) {
		return strings.Contains(clean, key)
	}
	if strings.Contains(padded, " "+key+" ") {
		return true
	}
	parts := strings.Fields(key)
	if len(parts) < 2 {
		return false
	}
	last := parts[len(parts)-1]
	if len(last) < fuzzyMinWord {
		return false
	}
	for _, w := range words {
		if w == last {
			return true
		}
	}
	return false
}

// Analyze scores every directory department against the keywords found in
// symptoms, highest first. Departments scoring zero are left out.
func (a *SymptomAnalyzer) Analyze(ctx context.Context, symptoms string) (*SymptomAnalysis, error) {
	out := &SymptomAnalysis{Keywords: a.ExtractKeywords(symptoms)}
	if len(out.Keywords) == 0 {
		return out, nil
	}

	depts, err := a.departments.ListDepartments(ctx)
	if err != nil {
		return nil, wrapInfra("list departments", err)
	}
	for _, d := range depts {
		if rec := a.Match(out.Keywords, d); rec.Score > 0 {
			out.Recommendations = append(out.Recommendations, rec)
		}
	}
	sort.Slice(out.Recommendations, func(i, j int) bool {
		ri, rj := out.Recommendations[i], out.Recommendations[j]
		if ri.Score != rj.Score {
			return ri.Score > rj.Score
		}
		if ri.Department.Name != rj.Department.Name {
			return ri.Department.Name < rj.Department.Name
		}
		return ri.Department.ID.String() < rj.Department.ID.String()
	})
	return out, nil
}

// Match scores keywords against one department, 10 points per keyword that
// the department treats, capped at 100.
func (a *SymptomAnalyzer) Match(keywords []string, department Department) DepartmentRecommendation {
	var matched []string
	for _, kw := range keywords {
		for _, name := range a.keywords[kw] {
			if strings.EqualFold(name, department.Name) {
				matched = append(matched, kw)
				break
			}
		}
	}
	return DepartmentRecommendation{
		Department:      department,
		Score:           scoreOf(len(matched)),
		MatchedKeywords: matched,
		Reason:          recommendationReason(matched),
	}
}

func scoreOf(keywords int) int {
	return min(keywords*keywordScore, maxMatchScore)
}

func recommendationReason(keywords []string) string {
	switch len(keywords) {
	case 0:
		return "no matching symptoms"
	case 1:
		return "matched symptom: " + keywords[0]
	case 2:
		return "matched symptoms: " + strings.Join(keywords, ", ")
	default:
		return fmt.Sprintf("matched %d related symptoms", len(keywords))
	}
}

// AnalyzeSymptoms recommends departments for a symptom description. An
// analysis without recommendations is not an error.
func (s *Service) AnalyzeSymptoms(ctx context.Context, symptoms string) (*SymptomAnalysis, error) {
	if strings.TrimSpace(symptoms) == "" {
		return nil, ErrMissingSymptoms
	}
	return s.symptoms.Analyze(ctx, symptoms)
}

// SymptomMatchScore scores a symptom description against one department.
func (s *Service) SymptomMatchScore(ctx context.Context, symptoms string, departmentID uuid.UUID) (*DepartmentRecommendation, error) {
	if strings.TrimSpace(symptoms) == "" {
		return nil, ErrMissingSymptoms
	}
	if departmentID == uuid.Nil {
		return nil, ErrMissingDepartment
	}
	dept, err := s.departments.GetDepartment(ctx, departmentID)
	if err != nil {
		return nil, wrapInfra("load department", err)
	}
	rec := s.symptoms.Match(s.symptoms.ExtractKeywords(symptoms), *dept)
	return &rec, nil
}

// recommendDepartment returns the best scoring department for symptoms.
func (s *Service) recommendDepartment(ctx context.Context, symptoms string) (*DepartmentRecommendation, error) {
	analysis, err := s.AnalyzeSymptoms(ctx, symptoms)
	if err != nil {
		return nil, err
	}
	if len(analysis.Recommendations) == 0 {
		return nil, ErrNoDepartmentMatch
	}
	best := analysis.Recommendations[0]
	s.log.Debug().
		Str("department_id", best.Department.ID.String()).
		Int("score", best.Score).
		Strs("keywords", best.MatchedKeywords).
		Msg("department recommended from symptoms")
	return &best, nil
}
