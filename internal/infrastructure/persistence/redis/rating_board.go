package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/spectrum/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATING BOARD
// ══════════════════════════════════════════════════════════════════════════════

// RatingBoard keeps the rating leaderboard in Redis.
//
// Layout:
//   - Sorted Set "spectrum:leaderboard:rating" stores studentID -> rating
//   - Hash "spectrum:leaderboard:info" stores studentID -> entry JSON
//
// Ranks come from the sorted set position, so a lookup is O(log N).
type RatingBoard struct {
	cache *Cache
}

var _ student.RatingBoard = (*RatingBoard)(nil)

const (
	keyBoardScores = PrefixLeaderboard + "rating"
	keyBoardInfo   = PrefixLeaderboard + "info"
)

// boardEntry is the JSON stored in the info hash.
type boardEntry struct {
	StudentID string `json:"student_id"`
	FullName  string `json:"full_name"`
	GroupName string `json:"group_name,omitempty"`
	Rating    int    `json:"rating"`
}

// NewRatingBoard creates a new RatingBoard.
func NewRatingBoard(cache *Cache) *RatingBoard {
	return &RatingBoard{cache: cache}
}

// Upsert updates or adds a single entry. O(log N).
func (b *RatingBoard) Upsert(ctx context.Context, s student.Standing) error {
	if s.StudentID == "" {
		return ErrStudentIDEmpty
	}
	data, err := json.Marshal(toBoardEntry(s))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	pipe := b.cache.Client().TxPipeline()
	pipe.ZAdd(ctx, keyBoardScores, redis.Z{Score: float64(s.Rating), Member: s.StudentID})
	pipe.HSet(ctx, keyBoardInfo, s.StudentID, data)
	_, err = pipe.Exec(ctx)
	return err
}

// Rebuild replaces the whole board in one transaction.
func (b *RatingBoard) Rebuild(ctx context.Context, all []student.Standing) error {
	pipe := b.cache.Client().TxPipeline()
	pipe.Del(ctx, keyBoardScores, keyBoardInfo)

	if len(all) > 0 {
		members := make([]redis.Z, 0, len(all))
		info := make(map[string]interface{}, len(all))
		for _, s := range all {
			data, err := json.Marshal(toBoardEntry(s))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}
			members = append(members, redis.Z{Score: float64(s.Rating), Member: s.StudentID})
			info[s.StudentID] = data
		}
		pipe.ZAdd(ctx, keyBoardScores, members...)
		pipe.HSet(ctx, keyBoardInfo, info)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// Top returns the first limit entries by descending rating.
func (b *RatingBoard) Top(ctx context.Context, limit int) ([]student.Standing, error) {
	if limit <= 0 {
		return []student.Standing{}, nil
	}

	ids, err := b.cache.Client().ZRevRange(ctx, keyBoardScores, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []student.Standing{}, nil
	}

	data, err := b.cache.Client().HMGet(ctx, keyBoardInfo, ids...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]student.Standing, 0, len(ids))
	for i, v := range data {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var e boardEntry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			continue
		}
		out = append(out, student.Standing{
			Rank:      i + 1,
			StudentID: e.StudentID,
			FullName:  e.FullName,
			GroupName: e.GroupName,
			Rating:    e.Rating,
		})
	}
	return out, nil
}

// Count returns the number of entries.
func (b *RatingBoard) Count(ctx context.Context) (int64, error) {
	return b.cache.Client().ZCard(ctx, keyBoardScores).Result()
}

func toBoardEntry(s student.Standing) boardEntry {
	return boardEntry{
		StudentID: s.StudentID,
		FullName:  s.FullName,
		GroupName: s.GroupName,
		Rating:    s.Rating,
	}
}
