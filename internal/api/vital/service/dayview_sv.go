package vitalService

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"eldercare-vitals/internal/api/vital"
	"eldercare-vitals/pkg/capturetime"
	"eldercare-vitals/pkg/log"
	"eldercare-vitals/pkg/redis"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// The generation counter must outlive every cached view written under an older generation.
const dayViewGenerationTTL = 24 * time.Hour

func dayViewKey(subjectID, localDate string) string {
	return fmt.Sprintf("vitals:bp:%s:%s", subjectID, localDate)
}

func dayViewGenerationKey(subjectID, localDate string) string {
	return dayViewKey(subjectID, localDate) + ":gen"
}

func dayViewEntryKey(subjectID, localDate string, generation int64) string {
	return fmt.Sprintf("%s:g%d", dayViewKey(subjectID, localDate), generation)
}

func (s *vitalService) GetDayView(ctx context.Context, viewerID, subjectID, date string) (vital.DayView, error) {
	if subjectID == "" || viewerID == "" {
		return vital.DayView{}, vital.ErrSubjectRequired
	}

	localDate, ok := capturetime.ParseLocalDate(date)
	if !ok {
		return vital.DayView{}, vital.ErrInvalidDate
	}

	entry := log.WithContext(s.log, ctx).WithFields(logrus.Fields{
		"viewer_id":  viewerID,
		"subject_id": subjectID,
	})

	allowed, err := s.visibility.CanView(ctx, viewerID, subjectID)
	if err != nil {
		entry.WithField("error", err.Error()).Error("Failed to check day view visibility")
		return vital.DayView{}, fmt.Errorf("check visibility: %w", err)
	}
	if !allowed {
		entry.Warn("Day view denied")
		return vital.DayView{}, vital.ErrForbidden
	}

	key, cacheable := s.dayViewCacheKey(ctx, subjectID, localDate, entry)
	if cacheable {
		cached, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			var view vital.DayView
			if err := jsoniter.UnmarshalFromString(cached, &view); err == nil {
				return view, nil
			}
			entry.WithField("key", key).Warn("Discarding undecodable day view cache entry")
		case !redis.IsMiss(err):
			entry.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Day view cache unavailable")
			cacheable = false
		}
	}

	client, err := s.vitalRepository.NewClient(false)
	if err != nil {
		return vital.DayView{}, err
	}

	readings, err := client.Vital.GetReadingsByDate(ctx, subjectID, localDate)
	if err != nil {
		entry.WithFields(logrus.Fields{"local_date": localDate, "error": err.Error()}).Error("Failed to load day view")
		return vital.DayView{}, err
	}

	view := vital.NewDayView(subjectID, localDate, readings)

	// A capture landing between the read above and this write bumps the generation, so an
	// outdated view can only be stored under a key nobody reads any more.
	if cacheable {
		if data, err := jsoniter.MarshalToString(view); err == nil {
			if err := s.cache.Set(ctx, key, data, s.settings.DayViewTTL); err != nil {
				entry.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Failed to cache day view")
			}
		}
	}

	return view, nil
}

// dayViewCacheKey resolves the entry key for the current generation. It reports false when
// the cache cannot be used for this request.
func (s *vitalService) dayViewCacheKey(ctx context.Context, subjectID, localDate string, entry *logrus.Entry) (string, bool) {
	if s.cache == nil {
		return "", false
	}

	genKey := dayViewGenerationKey(subjectID, localDate)
	raw, err := s.cache.Get(ctx, genKey)
	switch {
	case redis.IsMiss(err):
		return dayViewEntryKey(subjectID, localDate, 0), true
	case err != nil:
		entry.WithFields(logrus.Fields{"key": genKey, "error": err.Error()}).Warn("Day view cache unavailable")
		return "", false
	}

	generation, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		entry.WithField("key", genKey).Warn("Day view cache generation is not a number")
		return "", false
	}
	return dayViewEntryKey(subjectID, localDate, generation), true
}

func (s *vitalService) invalidateDayView(ctx context.Context, subjectID, localDate string) {
	if s.cache == nil {
		return
	}

	entry := log.WithContext(s.log, ctx)
	genKey := dayViewGenerationKey(subjectID, localDate)

	generation, err := s.cache.Incr(ctx, genKey, max(dayViewGenerationTTL, 2*s.settings.DayViewTTL))
	if err != nil {
		entry.WithFields(logrus.Fields{
			"key":   genKey,
			"error": err.Error(),
		}).Warn("Failed to invalidate day view cache")
		return
	}

	stale := dayViewEntryKey(subjectID, localDate, generation-1)
	if err := s.cache.Delete(ctx, stale); err != nil {
		entry.WithFields(logrus.Fields{"key": stale, "error": err.Error()}).Debug("Failed to drop previous day view")
	}
}
