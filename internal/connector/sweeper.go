package connector

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"universo_lite/internal/events"
	"universo_lite/internal/models"
)

// RunSweeper marks connector-registered resources offline once their
// heartbeat goes silent for longer than timeout. Runs until the context is
// cancelled.
func RunSweeper(ctx context.Context, db *gorm.DB, hub *events.Hub, interval, timeout time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sweepOnce(db, hub, timeout, log); err != nil {
				log.Warn("sweep failed", zap.Error(err))
			}
		}
	}
}

func sweepOnce(db *gorm.DB, hub *events.Hub, timeout time.Duration, log *zap.Logger) error {
	cutoff := time.Now().Add(-timeout)

	var stale []models.Resource
	err := db.Where("status = ? AND last_seen_at < ?", models.ResourceOnline, cutoff).
		Find(&stale).Error
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(stale))
	for _, r := range stale {
		ids = append(ids, r.ID)
	}
	if err := db.Model(&models.Resource{}).
		Where("id IN ?", ids).
		Update("status", models.ResourceOffline).Error; err != nil {
		return err
	}

	for _, r := range stale {
		log.Info("resource offline", zap.Int64("resource_id", r.ID), zap.String("name", r.Name))
		var clusterIDs []int64
		if err := db.Table("cluster_domains cd").
			Joins("JOIN domain_resources dr ON dr.domain_id = cd.domain_id").
			Where("dr.resource_id = ?", r.ID).
			Distinct("cd.cluster_id").
			Pluck("cd.cluster_id", &clusterIDs).Error; err != nil {
			continue
		}
		for _, cid := range clusterIDs {
			hub.Publish(events.New(cid, "connectors.offline", "resource", r.ID))
		}
	}
	return nil
}
