// Package student содержит доменную модель студента SPECTRUM.
//
// Пакет определяет:
//
//   - Сущности: Student, Grade, RatingRecord
//   - Value Objects: Stats, Status
//   - Интерфейсы хранилищ: Repository, RatingStore, GradeRepository
//
// # Рейтинг
//
// Рейтинг студента начинается с InitialRating и меняется только через
// RatingStore.ApplyRatingChange, который в одной транзакции обновляет
// рейтинг и добавляет запись в историю. Поэтому для любого студента
// выполняется равенство:
//
//	student.Rating == InitialRating + сумма(record.Delta)
//
// Repository.Update никогда не пишет колонку рейтинга.
package student
