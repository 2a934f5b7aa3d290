package achievement

import (
	"context"
)

// Evaluator вычисляет, какие достижения студент заработал. Без состояния:
// один и тот же Evaluator используется и для одного студента, и для
// полного прохода, поэтому результаты совпадают.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator создаёт вычислитель с правилами для порогов t.
func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{rules: RulesFor(t)}
}

// Satisfied возвращает коды всех выполненных предикатов в порядке каталога.
func (e *Evaluator) Satisfied(s Snapshot) []Code {
	var codes []Code
	for _, r := range e.rules {
		if r.Satisfied(s) {
			codes = append(codes, r.Code())
		}
	}
	return codes
}

// Pending возвращает выполненные, но ещё не выданные достижения.
func (e *Evaluator) Pending(s Snapshot, held []Grant) []Code {
	have := make(map[Code]bool, len(held))
	for _, g := range held {
		have[g.Code] = true
	}

	var codes []Code
	for _, c := range e.Satisfied(s) {
		if !have[c] {
			codes = append(codes, c)
		}
	}
	return codes
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository хранит выданные достижения.
type Repository interface {
	// Grant сохраняет выдачу. Возвращает created=false без ошибки, если
	// такая пара (студент, код) уже есть.
	Grant(ctx context.Context, g Grant) (created bool, err error)

	// ListByStudent возвращает выдачи студента по времени получения.
	ListByStudent(ctx context.Context, studentID string) ([]Grant, error)
}
