package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"video-worker/internal/domain"
	"video-worker/internal/gateway"
)

// Gateway implements gateway.Storage against Postgres via GORM. Every
// write is conflict-tolerant on the natural key named in §4.B so that
// replaying a stage after a crash never produces duplicate rows.
type Gateway struct {
	db *gorm.DB
}

var _ gateway.Storage = (*Gateway)(nil)

func New(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

func (g *Gateway) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ClaimNextJob runs the same SELECT ... FOR UPDATE SKIP LOCKED CTE, joined
// to an UPDATE ... RETURNING, as original_source/worker/db.py's
// claim_job(): one pending job in FIFO order, skipping rows a concurrent
// worker already holds, atomically incrementing attempts.
func (g *Gateway) ClaimNextJob(ctx context.Context) (*gateway.ClaimedJob, error) {
	var claimed struct {
		ID       string
		VideoID  string
		Attempts int
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := tx.Raw(`
			WITH j AS (
				SELECT id, video_id
				FROM jobs
				WHERE status = ?
				ORDER BY created_at
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			UPDATE jobs
			SET status = ?, attempts = attempts + 1
			FROM j
			WHERE jobs.id = j.id
			RETURNING jobs.id, j.video_id, jobs.attempts
		`, domain.JobPending, domain.JobProcessing).Row()

		if err := row.Scan(&claimed.ID, &claimed.VideoID, &claimed.Attempts); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}

		return tx.Model(&videoPO{}).Where("id = ?", claimed.VideoID).
			Update("status", domain.VideoProcessing).Error
	})
	if err != nil {
		return nil, domain.Retryable(fmt.Errorf("claim next job: %w", err))
	}
	if claimed.ID == "" {
		return nil, nil
	}

	return &gateway.ClaimedJob{JobID: claimed.ID, VideoID: claimed.VideoID, Attempts: claimed.Attempts}, nil
}

func (g *Gateway) FailJob(ctx context.Context, jobID, message string) error {
	err := g.db.WithContext(ctx).Model(&jobPO{}).Where("id = ?", jobID).Updates(map[string]any{
		"status": domain.JobFailed,
		"error":  domain.TruncateError(message),
	}).Error
	if err != nil {
		return domain.Retryable(fmt.Errorf("fail job %s: %w", jobID, err))
	}
	return nil
}

func (g *Gateway) ResetJob(ctx context.Context, jobID, message string) error {
	err := g.db.WithContext(ctx).Model(&jobPO{}).Where("id = ?", jobID).Updates(map[string]any{
		"status": domain.JobPending,
		"error":  domain.TruncateError(message),
	}).Error
	if err != nil {
		return domain.Retryable(fmt.Errorf("reset job %s: %w", jobID, err))
	}
	return nil
}

func (g *Gateway) CompleteJob(ctx context.Context, jobID, videoID string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&jobPO{}).Where("id = ?", jobID).Update("status", domain.JobDone).Error; err != nil {
			return err
		}
		return tx.Model(&videoPO{}).Where("id = ?", videoID).Update("status", domain.VideoReady).Error
	})
}

func (g *Gateway) FetchVideo(ctx context.Context, videoID string) (*domain.Video, error) {
	var row videoPO
	if err := g.db.WithContext(ctx).Where("id = ?", videoID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Retryable(fmt.Errorf("fetch video %s: %w", videoID, err))
	}
	return &domain.Video{
		ID:             row.ID,
		OriginalPath:   row.OriginalPath,
		Status:         domain.VideoStatus(row.Status),
		NormalizedPath: row.NormalizedPath,
		DurationSec:    row.DurationSec,
	}, nil
}

func (g *Gateway) UpdateVideoNormalized(ctx context.Context, videoID, normalizedPath string, durationSec float64) error {
	err := g.db.WithContext(ctx).Model(&videoPO{}).Where("id = ?", videoID).Updates(map[string]any{
		"normalized_path": normalizedPath,
		"duration_sec":    durationSec,
	}).Error
	if err != nil {
		return domain.Retryable(fmt.Errorf("update video normalized %s: %w", videoID, err))
	}
	return nil
}

func (g *Gateway) HasScenes(ctx context.Context, videoID string) (bool, error) {
	return g.exists(ctx, &scenePO{}, "video_id = ?", videoID)
}

func (g *Gateway) BulkInsertScenes(ctx context.Context, rows []domain.Scene) error {
	if len(rows) == 0 {
		return nil
	}
	pos := make([]scenePO, 0, len(rows))
	for _, s := range rows {
		pos = append(pos, scenePO{ID: s.ID, VideoID: s.VideoID, Idx: s.Idx, TStart: s.TStart, TEnd: s.TEnd})
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&pos).Error
	if err != nil {
		return domain.Retryable(fmt.Errorf("bulk insert scenes: %w", err))
	}
	return nil
}

func (g *Gateway) ListScenes(ctx context.Context, videoID string) ([]domain.Scene, error) {
	var pos []scenePO
	if err := g.db.WithContext(ctx).Where("video_id = ?", videoID).Order("idx").Find(&pos).Error; err != nil {
		return nil, domain.Retryable(fmt.Errorf("list scenes for %s: %w", videoID, err))
	}
	out := make([]domain.Scene, 0, len(pos))
	for _, p := range pos {
		out = append(out, domain.Scene{ID: p.ID, VideoID: p.VideoID, Idx: p.Idx, TStart: p.TStart, TEnd: p.TEnd})
	}
	return out, nil
}

func (g *Gateway) HasFrames(ctx context.Context, videoID string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&framePO{}).
		Joins("JOIN scenes ON scenes.id = frames.scene_id").
		Where("scenes.video_id = ?", videoID).
		Count(&count).Error
	if err != nil {
		return false, domain.Retryable(fmt.Errorf("has frames for %s: %w", videoID, err))
	}
	return count > 0, nil
}

func (g *Gateway) BulkInsertFrames(ctx context.Context, rows []domain.Frame) error {
	if len(rows) == 0 {
		return nil
	}
	pos := make([]framePO, 0, len(rows))
	for _, f := range rows {
		pos = append(pos, framePO{ID: f.ID, SceneID: f.SceneID, TFrame: f.TFrame, Path: f.Path, Phash: f.Phash})
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&pos).Error
	if err != nil {
		return domain.Retryable(fmt.Errorf("bulk insert frames: %w", err))
	}
	return nil
}

func (g *Gateway) ListFrames(ctx context.Context, videoID string) ([]domain.Frame, error) {
	var pos []framePO
	err := g.db.WithContext(ctx).
		Joins("JOIN scenes ON scenes.id = frames.scene_id").
		Where("scenes.video_id = ?", videoID).
		Order("frames.t_frame").
		Find(&pos).Error
	if err != nil {
		return nil, domain.Retryable(fmt.Errorf("list frames for %s: %w", videoID, err))
	}
	return framePOsToDomain(pos), nil
}

func (g *Gateway) FramesMissingCaption(ctx context.Context, videoID string) ([]domain.Frame, error) {
	var pos []framePO
	err := g.db.WithContext(ctx).
		Joins("JOIN scenes ON scenes.id = frames.scene_id").
		Joins("LEFT JOIN frame_captions ON frame_captions.frame_id = frames.id").
		Where("scenes.video_id = ? AND frame_captions.id IS NULL", videoID).
		Order("frames.t_frame").
		Find(&pos).Error
	if err != nil {
		return nil, domain.Retryable(fmt.Errorf("frames missing caption for %s: %w", videoID, err))
	}
	return framePOsToDomain(pos), nil
}

func framePOsToDomain(pos []framePO) []domain.Frame {
	out := make([]domain.Frame, 0, len(pos))
	for _, p := range pos {
		out = append(out, domain.Frame{ID: p.ID, SceneID: p.SceneID, TFrame: p.TFrame, Path: p.Path, Phash: p.Phash})
	}
	return out
}

func (g *Gateway) HasSegments(ctx context.Context, videoID string) (bool, error) {
	return g.exists(ctx, &transcriptSegmentPO{}, "video_id = ?", videoID)
}

func (g *Gateway) BulkInsertSegments(ctx context.Context, rows []domain.TranscriptSegment) error {
	if len(rows) == 0 {
		return nil
	}
	pos := make([]transcriptSegmentPO, 0, len(rows))
	for _, s := range rows {
		pos = append(pos, transcriptSegmentPO{ID: s.ID, VideoID: s.VideoID, TStart: s.TStart, TEnd: s.TEnd, Text: s.Text})
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&pos).Error
	if err != nil {
		return domain.Retryable(fmt.Errorf("bulk insert segments: %w", err))
	}
	return nil
}

func (g *Gateway) SegmentsMissingEmbedding(ctx context.Context, videoID string) ([]domain.TranscriptSegment, error) {
	var pos []transcriptSegmentPO
	err := g.db.WithContext(ctx).Where("video_id = ? AND embedding IS NULL", videoID).Order("t_start").Find(&pos).Error
	if err != nil {
		return nil, domain.Retryable(fmt.Errorf("segments missing embedding for %s: %w", videoID, err))
	}
	out := make([]domain.TranscriptSegment, 0, len(pos))
	for _, p := range pos {
		out = append(out, domain.TranscriptSegment{ID: p.ID, VideoID: p.VideoID, TStart: p.TStart, TEnd: p.TEnd, Text: p.Text})
	}
	return out, nil
}

func (g *Gateway) UpdateSegmentEmbedding(ctx context.Context, id string, vector []float32) error {
	v := pgvector.NewVector(vector)
	err := g.db.WithContext(ctx).Model(&transcriptSegmentPO{}).Where("id = ?", id).Update("embedding", &v).Error
	if err != nil {
		return domain.Retryable(fmt.Errorf("update segment embedding %s: %w", id, err))
	}
	return nil
}

func (g *Gateway) BulkInsertCaptions(ctx context.Context, rows []domain.FrameCaption) error {
	if len(rows) == 0 {
		return nil
	}
	pos := make([]frameCaptionPO, 0, len(rows))
	for _, c := range rows {
		entitiesJSON, err := json.Marshal(c.Entities)
		if err != nil {
			return domain.Fatal(fmt.Errorf("marshal entities for caption %s: %w", c.ID, err))
		}
		pos = append(pos, frameCaptionPO{ID: c.ID, FrameID: c.FrameID, Caption: c.Caption, EntitiesJSON: string(entitiesJSON)})
	}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&pos).Error
	if err != nil {
		return domain.Retryable(fmt.Errorf("bulk insert captions: %w", err))
	}
	return nil
}

func (g *Gateway) CaptionsMissingEmbedding(ctx context.Context, videoID string) ([]domain.FrameCaption, error) {
	var pos []frameCaptionPO
	err := g.db.WithContext(ctx).Model(&frameCaptionPO{}).
		Joins("JOIN frames ON frames.id = frame_captions.frame_id").
		Joins("JOIN scenes ON scenes.id = frames.scene_id").
		Where("scenes.video_id = ? AND frame_captions.embedding IS NULL", videoID).
		Find(&pos).Error
	if err != nil {
		return nil, domain.Retryable(fmt.Errorf("captions missing embedding for %s: %w", videoID, err))
	}

	out := make([]domain.FrameCaption, 0, len(pos))
	for _, p := range pos {
		var entities domain.Entities
		if err := json.Unmarshal([]byte(p.EntitiesJSON), &entities); err != nil {
			return nil, domain.Fatal(fmt.Errorf("unmarshal entities for caption %s: %w", p.ID, err))
		}
		out = append(out, domain.FrameCaption{ID: p.ID, FrameID: p.FrameID, Caption: p.Caption, Entities: entities})
	}
	return out, nil
}

func (g *Gateway) UpdateCaptionEmbedding(ctx context.Context, id string, vector []float32) error {
	v := pgvector.NewVector(vector)
	err := g.db.WithContext(ctx).Model(&frameCaptionPO{}).Where("id = ?", id).Update("embedding", &v).Error
	if err != nil {
		return domain.Retryable(fmt.Errorf("update caption embedding %s: %w", id, err))
	}
	return nil
}

// PeekQueue mirrors original_source/worker/db.py's get_pending_jobs: the
// oldest pending jobs joined to their video's original_path.
func (g *Gateway) PeekQueue(ctx context.Context, limit int) ([]gateway.QueueEntry, error) {
	type row struct {
		ID           string
		VideoID      string
		OriginalPath string
		CreatedAt    string
	}
	var rows []row
	err := g.db.WithContext(ctx).Table("jobs AS j").
		Select("j.id, j.video_id, v.original_path, j.created_at").
		Joins("JOIN videos v ON v.id = j.video_id").
		Where("j.status = ?", domain.JobPending).
		Order("j.created_at").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, domain.Retryable(fmt.Errorf("peek queue: %w", err))
	}
	out := make([]gateway.QueueEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, gateway.QueueEntry{JobID: r.ID, VideoID: r.VideoID, OriginalPath: r.OriginalPath, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (g *Gateway) Stats(ctx context.Context) (gateway.Stats, error) {
	var stats gateway.Stats
	for status, dest := range map[domain.JobStatus]*int64{
		domain.JobPending:    &stats.PendingJobs,
		domain.JobProcessing: &stats.ProcessingJobs,
		domain.JobDone:       &stats.DoneJobs,
		domain.JobFailed:     &stats.FailedJobs,
	} {
		var count int64
		if err := g.db.WithContext(ctx).Model(&jobPO{}).Where("status = ?", status).Count(&count).Error; err != nil {
			return gateway.Stats{}, domain.Retryable(fmt.Errorf("stats: %w", err))
		}
		*dest = count
	}
	return stats, nil
}

func (g *Gateway) exists(ctx context.Context, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := g.db.WithContext(ctx).Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, domain.Retryable(fmt.Errorf("exists check: %w", err))
	}
	return count > 0, nil
}
