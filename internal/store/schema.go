package store

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// The persistence objects below mirror §3's entities one-for-one. They
// carry GORM tags only; domain.* types never depend on gorm, so the
// conversion lives entirely in this package.

type videoPO struct {
	ID             string `gorm:"column:id;primaryKey;size:128"`
	OriginalPath   string `gorm:"column:original_path;size:512;not null"`
	Status         string `gorm:"column:status;size:20;index;not null"`
	NormalizedPath *string `gorm:"column:normalized_path;size:512"`
	DurationSec    *float64 `gorm:"column:duration_sec"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (videoPO) TableName() string { return "videos" }

type jobPO struct {
	ID        string  `gorm:"column:id;primaryKey;size:128"`
	VideoID   string  `gorm:"column:video_id;size:128;index;not null"`
	Status    string  `gorm:"column:status;size:20;index;not null"`
	Attempts  int     `gorm:"column:attempts;not null;default:0"`
	Error     *string `gorm:"column:error;size:2000"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (jobPO) TableName() string { return "jobs" }

type scenePO struct {
	ID      string  `gorm:"column:id;primaryKey;size:128"`
	VideoID string  `gorm:"column:video_id;size:128;uniqueIndex:idx_scenes_video_idx;not null"`
	Idx     int     `gorm:"column:idx;uniqueIndex:idx_scenes_video_idx;not null"`
	TStart  float64 `gorm:"column:t_start;not null"`
	TEnd    float64 `gorm:"column:t_end;not null"`
}

func (scenePO) TableName() string { return "scenes" }

type framePO struct {
	ID      string  `gorm:"column:id;primaryKey;size:128"`
	SceneID string  `gorm:"column:scene_id;size:128;index;not null"`
	TFrame  float64 `gorm:"column:t_frame;not null"`
	Path    string  `gorm:"column:path;size:512;not null"`
	Phash   string  `gorm:"column:phash;size:16;not null"`
}

func (framePO) TableName() string { return "frames" }

type transcriptSegmentPO struct {
	ID        string        `gorm:"column:id;primaryKey;size:128"`
	VideoID   string        `gorm:"column:video_id;size:128;uniqueIndex:idx_segments_natural_key;not null"`
	TStart    float64       `gorm:"column:t_start;uniqueIndex:idx_segments_natural_key;not null"`
	TEnd      float64       `gorm:"column:t_end;uniqueIndex:idx_segments_natural_key;not null"`
	Text      string        `gorm:"column:text;type:text;not null"`
	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(1536)"`
}

func (transcriptSegmentPO) TableName() string { return "transcript_segments" }

type frameCaptionPO struct {
	ID           string           `gorm:"column:id;primaryKey;size:128"`
	FrameID      string           `gorm:"column:frame_id;size:128;uniqueIndex;not null"`
	Caption      string           `gorm:"column:caption;type:text;not null"`
	EntitiesJSON string           `gorm:"column:entities;type:jsonb;not null"`
	Embedding    *pgvector.Vector `gorm:"column:embedding;type:vector(1536)"`
}

func (frameCaptionPO) TableName() string { return "frame_captions" }
