package student

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции со студентами, кроме изменения рейтинга.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт нового студента.
	// Возвращает ErrStudentAlreadyExists, если билет уже занят.
	Create(ctx context.Context, student *Student) error

	// GetByID возвращает студента по внутреннему ID.
	// Возвращает ErrStudentNotFound, если студент не найден.
	GetByID(ctx context.Context, id string) (*Student, error)

	// Update применяет mutate к студенту под блокировкой строки и сохраняет
	// характеристики, риск, долги и статус. Рейтинг не сохраняется.
	// Возвращает ErrStudentNotFound, если студент не найден.
	Update(ctx context.Context, id string, mutate func(s *Student) error) (*Student, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Bulk Operations
	// ─────────────────────────────────────────────────────────────────────────

	// List возвращает студентов с пагинацией.
	List(ctx context.Context, opts ListOptions) ([]*Student, error)

	// Search ищет студентов по подстроке ФИО без учёта регистра.
	Search(ctx context.Context, query string, limit int) ([]*Student, error)

	// Summary возвращает агрегаты по всем студентам.
	Summary(ctx context.Context) (Summary, error)
}

// RatingStore - единственный путь изменения рейтинга.
type RatingStore interface {
	// ApplyRatingChange блокирует студента, вызывает mutate с его текущим
	// состоянием и в одной транзакции обновляет рейтинг, добавляет запись
	// истории и, если задана, оценку. Ошибка mutate откатывает всё.
	// Возвращает ErrStudentNotFound без записи, если студента нет.
	ApplyRatingChange(ctx context.Context, studentID string, mutate RatingMutation) (RatingRecord, error)

	// History возвращает историю рейтинга по возрастанию времени.
	History(ctx context.Context, studentID string) ([]RatingRecord, error)
}

// GradeRepository - чтение оценок.
type GradeRepository interface {
	// GradesByStudent возвращает все оценки студента.
	GradesByStudent(ctx context.Context, studentID string) ([]Grade, error)
}

// Summary - агрегаты для статистики кафедры.
type Summary struct {
	TotalStudents    int
	AverageRiskScore float64
}

// ListOptions содержит параметры для пагинации и сортировки.
type ListOptions struct {
	// Offset - смещение (для пагинации).
	Offset int

	// Limit - максимальное количество записей.
	Limit int

	// SortBy - поле для сортировки.
	SortBy SortField

	// SortDesc - сортировка по убыванию.
	SortDesc bool
}

// SortField - допустимые поля сортировки.
type SortField string

const (
	SortByCreatedAt SortField = "created_at"
	SortByRating    SortField = "rating"
	SortByRisk      SortField = "risk_score"
)

// DefaultListOptions возвращает параметры по умолчанию: стабильный порядок
// по времени создания, подходящий для постраничного обхода.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset: 0,
		Limit:  100,
		SortBy: SortByCreatedAt,
	}
}

// WithOffset устанавливает смещение.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit устанавливает лимит.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// WithSort устанавливает сортировку.
func (o ListOptions) WithSort(field SortField, desc bool) ListOptions {
	o.SortBy = field
	o.SortDesc = desc
	return o
}

// Standing - место студента в рейтинговой таблице.
type Standing struct {
	// Rank - позиция, начиная с 1.
	Rank      int
	StudentID string
	FullName  string
	GroupName string
	Rating    int
}

// StandingOf строит запись таблицы без позиции.
func StandingOf(s *Student) Standing {
	return Standing{
		StudentID: s.ID,
		FullName:  s.FullName,
		GroupName: s.GroupName,
		Rating:    s.Rating,
	}
}

// RatingBoard - быстрая рейтинговая таблица поверх основного хранилища.
// Хранилище остаётся источником истины; таблица может отставать и
// перестраиваться целиком.
type RatingBoard interface {
	// Upsert обновляет запись студента.
	Upsert(ctx context.Context, s Standing) error

	// Top возвращает первые limit записей по убыванию рейтинга.
	Top(ctx context.Context, limit int) ([]Standing, error)

	// Rebuild заменяет таблицу целиком.
	Rebuild(ctx context.Context, all []Standing) error
}
