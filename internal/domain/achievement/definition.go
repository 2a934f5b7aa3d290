// Package achievement содержит правила достижений и их вычисление по
// агрегированным метрикам студента. Выдача идемпотентна, отзыва нет.
package achievement

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CODES & CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Code - уникальный код достижения.
type Code string

const (
	// HighPerformer - высокий средний балл.
	HighPerformer Code = "HIGH_PERFORMER"
	// CodeNinja - отличные оценки по техническим предметам.
	CodeNinja Code = "CODE_NINJA"
	// IronWill - высокая выносливость.
	IronWill Code = "IRON_WILL"
	// SocialHub - высокая социальность.
	SocialHub Code = "SOCIAL_HUB"
	// CyberGhost - сдана криптография.
	CyberGhost Code = "CYBER_GHOST"
)

// DefaultReward - награда за достижение по умолчанию. Только метаданные:
// рейтинг она не меняет.
const DefaultReward = 100

// Definition описывает достижение.
type Definition struct {
	Code        Code
	Title       string
	Description string
	Reward      int
}

// Catalog возвращает все определения достижений в каноническом порядке.
func Catalog() []Definition {
	return []Definition{
		{HighPerformer, "Отличник", "Средний балл не ниже 4.5", DefaultReward},
		{CodeNinja, "Кодовый ниндзя", "Две и более оценки от 95 по техническим предметам", DefaultReward},
		{IronWill, "Железная воля", "Выносливость не ниже 95", DefaultReward},
		{SocialHub, "Душа компании", "Социальность не ниже 80", DefaultReward},
		{CyberGhost, "Кибер-призрак", "Сдана криптография", DefaultReward},
	}
}

// Lookup возвращает определение по коду.
func Lookup(code Code) (Definition, bool) {
	for _, def := range Catalog() {
		if def.Code == code {
			return def, true
		}
	}
	return Definition{}, false
}

// IsValid проверяет, что код есть в каталоге.
func (c Code) IsValid() bool {
	_, ok := Lookup(c)
	return ok
}

// Grant - выданное достижение. Не более одного на пару (студент, код).
type Grant struct {
	StudentID string
	Code      Code
	EarnedAt  time.Time
}
