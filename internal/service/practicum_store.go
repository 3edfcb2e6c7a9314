package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"schologic-practicum/backend/internal/model"
	"schologic-practicum/backend/internal/repository"
	pkgredis "schologic-practicum/backend/pkg/redis"
)

// Cache 读缓存接口，由 pkg/redis.Client 实现
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// noopCache 关闭缓存时使用，总是未命中
type noopCache struct{}

func (noopCache) GetJSON(context.Context, string, interface{}) error {
	return pkgredis.ErrCacheMiss
}
func (noopCache) SetJSON(context.Context, string, interface{}, time.Duration) error { return nil }
func (noopCache) Delete(context.Context, ...string) error                          { return nil }

func practicumCacheKey(id string) string { return "practicum:" + id }

// practicumStore 实践项目的读穿透缓存，供各服务共享
//
// 缓存只是加速读取：读写缓存失败只记日志，不影响业务结果。
type practicumStore struct {
	repo   *repository.Repository
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func newPracticumStore(repo *repository.Repository, cache Cache, ttl time.Duration, logger *zap.Logger) *practicumStore {
	if cache == nil {
		cache = noopCache{}
	}
	return &practicumStore{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// get 读取实践项目；不存在时返回 ErrPracticumNotFound
func (s *practicumStore) get(ctx context.Context, id string) (*model.Practicum, error) {
	key := practicumCacheKey(id)

	var cached model.Practicum
	err := s.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, pkgredis.ErrCacheMiss) {
		s.logger.Warn("读取实践项目缓存失败", zap.String("practicum_id", id), zap.Error(err))
	}

	p, err := s.repo.Practicum.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPracticumNotFound
		}
		s.logger.Error("查询实践项目失败", zap.String("practicum_id", id), zap.Error(err))
		return nil, err
	}

	if err := s.cache.SetJSON(ctx, key, p, s.ttl); err != nil {
		s.logger.Warn("写入实践项目缓存失败", zap.String("practicum_id", id), zap.Error(err))
	}
	return p, nil
}

// owned 读取并校验归属教师
func (s *practicumStore) owned(ctx context.Context, id, instructorID string) (*model.Practicum, error) {
	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.InstructorID != instructorID {
		return nil, ErrNotPracticumOwner
	}
	return p, nil
}

// fresh 绕过缓存读取，写操作前使用以拿到最新 version
func (s *practicumStore) fresh(ctx context.Context, id, instructorID string) (*model.Practicum, error) {
	p, err := s.repo.Practicum.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPracticumNotFound
		}
		s.logger.Error("查询实践项目失败", zap.String("practicum_id", id), zap.Error(err))
		return nil, err
	}
	if p.InstructorID != instructorID {
		return nil, ErrNotPracticumOwner
	}
	return p, nil
}

func (s *practicumStore) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, practicumCacheKey(id)); err != nil {
		s.logger.Warn("清除实践项目缓存失败", zap.String("practicum_id", id), zap.Error(err))
	}
}

// ── 格式化 ──

const dateLayout = "2006-01-02"

// utcDate 取日历日期的 UTC 零点，写入 date 列时不受业务时区影响
func utcDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// localDate date 列按 UTC 读出，换回业务时区的同一天
func localDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
