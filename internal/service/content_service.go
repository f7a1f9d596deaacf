package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pscprep/examengine/internal/dto"
	"github.com/pscprep/examengine/internal/model"
	"github.com/pscprep/examengine/internal/storage"
	"github.com/rs/zerolog/log"
)

// ContentAPI is the slice of the API client offline downloads need.
type ContentAPI interface {
	ListQuestions(ctx context.Context, categoryID int64, pageSize int, pageURL string) (*dto.PaginatedResponse[model.Question], error)
}

// downloadPageSize keeps a whole category down to a handful of requests.
const downloadPageSize = 200

const (
	questionCachePrefix   = "question_cache:"
	questionCacheIndexKey = "question_cache_index"
)

// ContentService manages offline question packs: whole categories
// downloaded ahead of time so practice keeps working with no
// connectivity at all.
type ContentService interface {
	DownloadCategory(ctx context.Context, categoryID int64, categoryName string) (int, error)
	CachedCategories() []dto.CachedCategoryDTO
	CachedQuestions(categoryID int64) ([]model.Question, error)
	ClearCategory(categoryID int64)
	ClearAll()
	PruneExpired() int
}

type contentService struct {
	api   ContentAPI
	store storage.Store
	ttl   time.Duration
	now   func() time.Time
}

type cachedPack struct {
	CategoryID   int64            `json:"category_id"`
	CategoryName string           `json:"category_name"`
	CachedAt     int64            `json:"cached_at"`
	Questions    []model.Question `json:"questions"`
}

func NewContentService(contentAPI ContentAPI, store storage.Store, ttl time.Duration, now func() time.Time) ContentService {
	if now == nil {
		now = time.Now
	}
	return &contentService{api: contentAPI, store: store, ttl: ttl, now: now}
}

// DownloadCategory pulls every question of a category, following the
// server's pagination links until exhausted, and stores the pack as one
// blob. Re-downloading replaces the previous pack wholesale.
func (s *contentService) DownloadCategory(ctx context.Context, categoryID int64, categoryName string) (int, error) {
	var questions []model.Question
	pageURL := ""
	for {
		page, err := s.api.ListQuestions(ctx, categoryID, downloadPageSize, pageURL)
		if err != nil {
			return 0, fmt.Errorf("download category %d: %w", categoryID, err)
		}
		questions = append(questions, page.Results...)
		if page.Next == nil || *page.Next == "" {
			break
		}
		pageURL = *page.Next
	}

	pack := cachedPack{
		CategoryID:   categoryID,
		CategoryName: categoryName,
		CachedAt:     s.now().UnixMilli(),
		Questions:    questions,
	}
	raw, err := json.Marshal(pack)
	if err != nil {
		return 0, fmt.Errorf("encode category %d pack: %w", categoryID, err)
	}
	s.store.Set(packKey(categoryID), string(raw))
	s.addToIndex(categoryID)

	log.Info().Int64("categoryID", categoryID).Int("questions", len(questions)).
		Msg("Downloaded question pack")
	return len(questions), nil
}

// CachedCategories lists every pack currently on disk, expired ones
// excluded.
func (s *contentService) CachedCategories() []dto.CachedCategoryDTO {
	var out []dto.CachedCategoryDTO
	for _, id := range s.index() {
		pack, ok := s.loadPack(id)
		if !ok || s.expired(pack) {
			continue
		}
		out = append(out, dto.CachedCategoryDTO{
			CategoryID:    pack.CategoryID,
			CategoryName:  pack.CategoryName,
			QuestionCount: len(pack.Questions),
			CachedAt:      pack.CachedAt,
		})
	}
	return out
}

// CachedQuestions returns a downloaded pack's questions, or an error when
// the category was never downloaded or its pack has expired.
func (s *contentService) CachedQuestions(categoryID int64) ([]model.Question, error) {
	pack, ok := s.loadPack(categoryID)
	if !ok {
		return nil, fmt.Errorf("category %d is not downloaded", categoryID)
	}
	if s.expired(pack) {
		return nil, fmt.Errorf("category %d pack has expired", categoryID)
	}
	return pack.Questions, nil
}

func (s *contentService) ClearCategory(categoryID int64) {
	s.store.Remove(packKey(categoryID))
	remaining := make([]int64, 0)
	for _, id := range s.index() {
		if id != categoryID {
			remaining = append(remaining, id)
		}
	}
	s.saveIndex(remaining)
}

func (s *contentService) ClearAll() {
	for _, key := range s.store.Keys(questionCachePrefix) {
		s.store.Remove(key)
	}
	s.store.Remove(questionCacheIndexKey)
}

// PruneExpired drops packs older than the retention window and reports
// how many were removed. Runs at startup so stale content never
// accumulates unbounded.
func (s *contentService) PruneExpired() int {
	pruned := 0
	kept := make([]int64, 0)
	for _, id := range s.index() {
		pack, ok := s.loadPack(id)
		if !ok || s.expired(pack) {
			s.store.Remove(packKey(id))
			pruned++
			continue
		}
		kept = append(kept, id)
	}
	if pruned > 0 {
		s.saveIndex(kept)
		log.Info().Int("pruned", pruned).Msg("Pruned expired question packs")
	}
	return pruned
}

func (s *contentService) expired(pack cachedPack) bool {
	age := s.now().Sub(time.UnixMilli(pack.CachedAt))
	return age > s.ttl
}

func (s *contentService) loadPack(categoryID int64) (cachedPack, bool) {
	raw, ok := s.store.GetString(packKey(categoryID))
	if !ok {
		return cachedPack{}, false
	}
	var pack cachedPack
	if err := json.Unmarshal([]byte(raw), &pack); err != nil {
		// A corrupt pack is treated as absent and removed.
		log.Warn().Int64("categoryID", categoryID).Err(err).Msg("Dropping corrupt question pack")
		s.store.Remove(packKey(categoryID))
		return cachedPack{}, false
	}
	return pack, true
}

func (s *contentService) index() []int64 {
	raw, ok := s.store.GetString(questionCacheIndexKey)
	if !ok {
		return nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	return ids
}

func (s *contentService) addToIndex(categoryID int64) {
	ids := s.index()
	for _, id := range ids {
		if id == categoryID {
			return
		}
	}
	s.saveIndex(append(ids, categoryID))
}

func (s *contentService) saveIndex(ids []int64) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	s.store.Set(questionCacheIndexKey, string(raw))
}

func packKey(categoryID int64) string {
	return fmt.Sprintf("%s%d", questionCachePrefix, categoryID)
}
