package handler

import (
	"context"

	"lighthouse.app/cityintel/internal/model"
	"lighthouse.app/cityintel/internal/pipeline"
	"lighthouse.app/cityintel/internal/video"
)

type PipelineController interface {
	Start(ctx context.Context) (int64, error)
	Stop()
	Snapshot() pipeline.Snapshot
	Subscribe() (<-chan pipeline.Snapshot, func())
}

// ArchiveCounter receives the archive size after operator edits.
type ArchiveCounter interface {
	SetArchiveCount(n int)
}

type PastIssueService interface {
	Load(ctx context.Context) ([]model.PastIssue, error)
	UpdateStatus(ctx context.Context, id int, status model.PastIssueStatus) error
}

type VideoService interface {
	Start(ctx context.Context, cycleID int64, stage model.Stage, cards []model.IssueCard) (video.Job, error)
	Get(id string) (video.Job, error)
}
