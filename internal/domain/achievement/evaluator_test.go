package achievement

import (
	"testing"
	"time"

	"github.com/alem-hub/spectrum/internal/domain/student"
	"github.com/stretchr/testify/assert"
)

func grade(subject string, score int) student.Grade {
	return student.Grade{Subject: subject, Score: score}
}

func TestEvaluator_Satisfied(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())

	tests := []struct {
		name     string
		snapshot Snapshot
		want     []Code
	}{
		{
			name:     "empty snapshot earns nothing",
			snapshot: Snapshot{},
			want:     nil,
		},
		{
			name: "high mean",
			snapshot: Snapshot{Grades: []student.Grade{
				grade("История", 100), grade("Физика", 80),
			}},
			want: []Code{HighPerformer},
		},
		{
			name: "mean just below threshold",
			snapshot: Snapshot{Grades: []student.Grade{
				grade("История", 100), grade("Физика", 79),
			}},
			want: nil,
		},
		{
			name: "two tech grades at 95 with crypto pass",
			snapshot: Snapshot{Grades: []student.Grade{
				grade(student.SubjectCryptography, 95),
				grade(student.SubjectAlgorithms, 100),
				grade("История", 40),
			}},
			want: []Code{CodeNinja, CyberGhost},
		},
		{
			name: "one tech grade is not enough",
			snapshot: Snapshot{Grades: []student.Grade{
				grade(student.SubjectDatabases, 100),
				grade("Физика", 100),
			}},
			want: []Code{HighPerformer},
		},
		{
			name: "crypto below pass",
			snapshot: Snapshot{Grades: []student.Grade{
				grade(student.SubjectCryptography, 40),
			}},
			want: nil,
		},
		{
			name:     "stats rules",
			snapshot: Snapshot{Stats: student.Stats{Resilience: 95, Sociability: 80}},
			want:     []Code{IronWill, SocialHub},
		},
		{
			name:     "stats just below",
			snapshot: Snapshot{Stats: student.Stats{Resilience: 94, Sociability: 79}},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Satisfied(tt.snapshot))
		})
	}
}

func TestEvaluator_Pending(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	s := Snapshot{Stats: student.Stats{Resilience: 100, Sociability: 100}}

	held := []Grant{{StudentID: "s1", Code: IronWill, EarnedAt: time.Now()}}
	assert.Equal(t, []Code{SocialHub}, e.Pending(s, held))

	held = append(held, Grant{StudentID: "s1", Code: SocialHub})
	assert.Empty(t, e.Pending(s, held))
}

func TestEvaluator_CustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.IronWillMinResilience = 90
	th.CodeNinjaSubjects = []string{"Go"}
	th.CodeNinjaMinCount = 1

	e := NewEvaluator(th)
	s := Snapshot{
		Grades: []student.Grade{grade("Go", 95), grade(student.SubjectAlgorithms, 20)},
		Stats:  student.Stats{Resilience: 90},
	}
	assert.Equal(t, []Code{CodeNinja, IronWill}, e.Satisfied(s))
}

func TestEvaluator_SameResultForSameData(t *testing.T) {
	th := DefaultThresholds()
	s := Snapshot{
		Grades: []student.Grade{grade(student.SubjectCryptography, 100), grade(student.SubjectDatabases, 100)},
		Stats:  student.Stats{Resilience: 96, Sociability: 10},
	}
	assert.Equal(t, NewEvaluator(th).Satisfied(s), NewEvaluator(th).Satisfied(s))
}

func TestCatalog(t *testing.T) {
	seen := map[Code]bool{}
	for _, def := range Catalog() {
		assert.False(t, seen[def.Code], "duplicate %s", def.Code)
		seen[def.Code] = true
		assert.NotEmpty(t, def.Title)
	}
	assert.Len(t, seen, 5)

	def, ok := Lookup(CyberGhost)
	assert.True(t, ok)
	assert.Equal(t, CyberGhost, def.Code)
	assert.False(t, Code("UNKNOWN").IsValid())

	for _, r := range RulesFor(DefaultThresholds()) {
		assert.True(t, r.Code().IsValid())
	}
}
