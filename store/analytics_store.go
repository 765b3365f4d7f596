package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"webfolio/api/database"
	"webfolio/api/logger"
	"webfolio/api/models"
)

// AnalyticsStore persists page views and behavioral events into ClickHouse.
type AnalyticsStore struct {
	DB  *database.ClickHouseClient
	log logger.Logger
}

func NewAnalyticsStore(chClient *database.ClickHouseClient, log logger.Logger) *AnalyticsStore {
	return &AnalyticsStore{
		DB:  chClient,
		log: log,
	}
}

// InsertPageView inserts one page view row. The caller has already
// validated the required fields.
func (s *AnalyticsStore) InsertPageView(ctx context.Context, pv models.PageView) error {
	if pv.CreatedAt.IsZero() {
		pv.CreatedAt = time.Now().UTC()
	}

	err := s.DB.Conn.Exec(ctx, `
		INSERT INTO page_views (
			path, referrer, utm_source, utm_medium, utm_campaign, utm_content, utm_term,
			session_id, visitor_hash, device_type, browser, browser_version,
			os, os_version, country, city, region, user_agent, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		pv.Path, pv.Referrer, pv.UTMSource, pv.UTMMedium, pv.UTMCampaign, pv.UTMContent, pv.UTMTerm,
		pv.SessionID, pv.VisitorHash, pv.DeviceType, pv.Browser, pv.BrowserVersion,
		pv.OS, pv.OSVersion, pv.Country, pv.City, pv.Region, pv.UserAgent, pv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert page view: %w", err)
	}
	return nil
}

// InsertEvents persists a batch of events with per-item failure
// granularity: events that fail validation are skipped and counted,
// valid events in the same batch are still inserted. Returns the number
// of events written.
func (s *AnalyticsStore) InsertEvents(ctx context.Context, events []models.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := s.DB.Conn.PrepareBatch(ctx, `
		INSERT INTO events (
			event_id, session_id, visitor_hash, path, category, action,
			label, value, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare event batch: %w", err)
	}

	inserted := 0
	skipped := 0

	for i := range events {
		event := events[i]
		if validationErr := event.Validate(); validationErr != nil {
			skipped++
			continue
		}
		if event.EventID == "" {
			event.EventID = uuid.New().String()
		}
		if event.CreatedAt.IsZero() {
			event.CreatedAt = time.Now().UTC()
		}

		metadata := "{}"
		if len(event.Metadata) > 0 {
			raw, marshalErr := json.Marshal(event.Metadata)
			if marshalErr != nil {
				skipped++
				continue
			}
			metadata = string(raw)
		}

		if appendErr := batch.Append(
			event.EventID,
			event.SessionID,
			event.VisitorHash,
			event.Path,
			string(event.Category),
			event.Action,
			event.Label,
			event.Value,
			metadata,
			event.CreatedAt,
		); appendErr != nil {
			s.log.Warn("Skipping event that failed batch append",
				logger.String("event_id", event.EventID),
				logger.Error(appendErr),
			)
			skipped++
			continue
		}
		inserted++
	}

	if inserted == 0 {
		_ = batch.Abort()
		if skipped > 0 {
			s.log.Warn("Dropped entire event batch", logger.Int("skipped", skipped))
		}
		return 0, nil
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send event batch: %w", err)
	}

	if skipped > 0 {
		s.log.Warn("Skipped malformed events in batch",
			logger.Int("skipped", skipped),
			logger.Int("inserted", inserted),
		)
	}
	return inserted, nil
}
