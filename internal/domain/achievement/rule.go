package achievement

import (
	"github.com/alem-hub/spectrum/internal/domain/student"
)

// Snapshot - агрегированные метрики студента, по которым считаются правила.
// Собирается один раз на студента за проход.
type Snapshot struct {
	StudentID string
	Grades    []student.Grade
	Stats     student.Stats
}

// Thresholds - настраиваемые пороги правил.
type Thresholds struct {
	// HighPerformerMinMean - минимальный средний балл (0..100).
	HighPerformerMinMean float64

	// CodeNinjaMinScore - минимальный балл технической оценки.
	CodeNinjaMinScore int

	// CodeNinjaMinCount - сколько таких оценок нужно.
	CodeNinjaMinCount int

	// CodeNinjaSubjects - технические предметы.
	CodeNinjaSubjects []string

	// IronWillMinResilience - минимальная выносливость.
	IronWillMinResilience int

	// SocialHubMinSociability - минимальная социальность.
	SocialHubMinSociability int

	// CyberGhostSubject и CyberGhostMinScore - предмет и проходной балл.
	CyberGhostSubject  string
	CyberGhostMinScore int
}

// DefaultThresholds возвращает пороги по умолчанию.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighPerformerMinMean:    90,
		CodeNinjaMinScore:       95,
		CodeNinjaMinCount:       2,
		CodeNinjaSubjects:       []string{student.SubjectCryptography, student.SubjectDatabases, student.SubjectAlgorithms},
		IronWillMinResilience:   95,
		SocialHubMinSociability: 80,
		CyberGhostSubject:       student.SubjectCryptography,
		CyberGhostMinScore:      60,
	}
}

// Rule - предикат одного достижения.
type Rule interface {
	// Code возвращает код достижения, которое выдаёт правило.
	Code() Code

	// Satisfied проверяет предикат на снимке.
	Satisfied(s Snapshot) bool
}

// RulesFor строит правила каталога с заданными порогами.
func RulesFor(t Thresholds) []Rule {
	return []Rule{
		highPerformerRule{minMean: t.HighPerformerMinMean},
		codeNinjaRule{minScore: t.CodeNinjaMinScore, minCount: t.CodeNinjaMinCount, subjects: toSet(t.CodeNinjaSubjects)},
		ironWillRule{min: t.IronWillMinResilience},
		socialHubRule{min: t.SocialHubMinSociability},
		cyberGhostRule{subject: t.CyberGhostSubject, minScore: t.CyberGhostMinScore},
	}
}

type highPerformerRule struct {
	minMean float64
}

func (highPerformerRule) Code() Code { return HighPerformer }

func (r highPerformerRule) Satisfied(s Snapshot) bool {
	mean, ok := student.MeanScore(s.Grades)
	return ok && mean >= r.minMean
}

type codeNinjaRule struct {
	minScore int
	minCount int
	subjects map[string]struct{}
}

func (codeNinjaRule) Code() Code { return CodeNinja }

func (r codeNinjaRule) Satisfied(s Snapshot) bool {
	count := 0
	for _, g := range s.Grades {
		if _, tech := r.subjects[g.Subject]; tech && g.Score >= r.minScore {
			count++
		}
	}
	return count >= r.minCount
}

type ironWillRule struct {
	min int
}

func (ironWillRule) Code() Code { return IronWill }

func (r ironWillRule) Satisfied(s Snapshot) bool {
	return s.Stats.Resilience >= r.min
}

type socialHubRule struct {
	min int
}

func (socialHubRule) Code() Code { return SocialHub }

func (r socialHubRule) Satisfied(s Snapshot) bool {
	return s.Stats.Sociability >= r.min
}

type cyberGhostRule struct {
	subject  string
	minScore int
}

func (cyberGhostRule) Code() Code { return CyberGhost }

func (r cyberGhostRule) Satisfied(s Snapshot) bool {
	for _, g := range s.Grades {
		if g.Subject == r.subject && g.Score >= r.minScore {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
