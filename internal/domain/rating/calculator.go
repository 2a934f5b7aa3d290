package rating

import (
	"math"

	"github.com/alem-hub/spectrum/internal/domain/shared"
)

// academicParams - K-фактор и сложность для учебных работ.
type academicParams struct {
	K          float64
	Difficulty float64
}

var academicTable = map[Kind]academicParams{
	KindExam:     {K: 60, Difficulty: 1500},
	KindTest:     {K: 40, Difficulty: 1200},
	KindHomework: {K: 20, Difficulty: 1000},
}

// Параметры соревнований и бонусов.
const (
	CompetitionBonus      = 5
	CompetitionDifficulty = 2000
	CompetitionScale      = 100
	CompetitionTopPlaces  = 10
	CompetitionPlaceStep  = 0.1

	KudosRatingPivot = 1000
	KudosCap         = 20
)

// ExpectedScore - ожидаемый результат по логистической кривой Эло.
func ExpectedScore(rating, difficulty float64) float64 {
	return 1 / (1 + math.Pow(10, (difficulty-rating)/400))
}

// Outcome переводит оценку в фактический результат. Оценки вне таблицы
// дают 0.0.
func Outcome(grade int) float64 {
	switch grade {
	case 5:
		return 1.0
	case 4:
		return 0.75
	case 3:
		return 0.25
	case 2:
		return 0.0
	default:
		return 0.0
	}
}

// ComputeDelta возвращает изменение рейтинга для события при текущем
// рейтинге. Чистая функция: одинаковые входы дают одинаковый результат.
func ComputeDelta(current int, ev Event) (int, error) {
	if err := Validate(ev); err != nil {
		return 0, err
	}

	switch e := ev.(type) {
	case Academic:
		return academicDelta(current, e), nil
	case Competition:
		return competitionDelta(current, e), nil
	case Kudos:
		return kudosDelta(current, e), nil
	case Manual:
		return e.Delta, nil
	default:
		return 0, shared.ErrUnknownEventKind
	}
}

func academicDelta(current int, e Academic) int {
	p := academicTable[e.Type]
	expected := ExpectedScore(float64(current), p.Difficulty)
	return round(p.K * (Outcome(e.Grade) - expected))
}

func competitionDelta(current int, e Competition) int {
	if e.Placement > CompetitionTopPlaces {
		return CompetitionBonus
	}

	actual := math.Max(0, 1-float64(e.Placement-1)*CompetitionPlaceStep)
	expected := ExpectedScore(float64(current), CompetitionDifficulty)
	raw := CompetitionScale * (actual - expected)

	delta := round(raw)
	if delta < CompetitionBonus {
		delta = CompetitionBonus
	}
	return delta + CompetitionBonus
}

func kudosDelta(current int, e Kudos) int {
	multiplier := float64(KudosRatingPivot) / math.Max(KudosRatingPivot, float64(current))
	return round(math.Min(float64(e.Bonus)*multiplier, KudosCap))
}

// round округляет половины к чётному.
func round(v float64) int {
	return int(math.RoundToEven(v))
}
