package student

import (
	"time"
)

// Предметы, на которые опираются правила достижений.
const (
	SubjectCryptography = "Криптография"
	SubjectDatabases    = "Базы Данных"
	SubjectAlgorithms   = "Алгоритмы"
)

// GradeScale - множитель перевода оценки 2..5 в балл 0..100.
const GradeScale = 20

// Grade - оценка студента по предмету.
type Grade struct {
	// ID - идентификатор оценки.
	ID string

	// StudentID - чья оценка.
	StudentID string

	// Subject - название предмета.
	Subject string

	// Score - балл 0..100 (оценка * GradeScale).
	Score int

	// IsExam - экзамен или текущая работа.
	IsExam bool

	// RecordedAt - когда выставлена.
	RecordedAt time.Time
}

// ScoreFromGrade переводит оценку по пятибалльной шкале в балл.
func ScoreFromGrade(value int) int {
	return value * GradeScale
}

// MeanScore возвращает средний балл и false для пустого списка.
func MeanScore(grades []Grade) (float64, bool) {
	if len(grades) == 0 {
		return 0, false
	}
	total := 0
	for _, g := range grades {
		total += g.Score
	}
	return float64(total) / float64(len(grades)), true
}

// GPA возвращает средний балл по пятибалльной шкале, округлённый до сотых.
func GPA(grades []Grade) float64 {
	mean, ok := MeanScore(grades)
	if !ok {
		return 0
	}
	gpa := mean / GradeScale
	return float64(int(gpa*100+0.5)) / 100
}
