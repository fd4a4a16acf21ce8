package audit

import (
	"context"
	"time"

	"github.com/messdesk/messdesk/internal/shared"
)

const (
	defaultPageSize = shared.DefaultPerPage
	maxPageSize     = 50
)

// Entry is one audit trail record as served to clients.
type Entry struct {
	At       time.Time      `json:"at"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// TimelineFilters narrows the audit trail. Zero values mean "no filter".
type TimelineFilters struct {
	Action   string
	Entity   string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// Result bundles a timeline page with its paging metadata.
type Result struct {
	Rows   []Entry
	Paging shared.Pagination
}

// Repository abstracts audit trail reads. Writes go through
// shared.AuditLogger; this side only ever queries.
type Repository interface {
	TimelineWindow(ctx context.Context, messID int64, f TimelineFilters, limit, offset int) ([]Entry, error)
	CountTimeline(ctx context.Context, messID int64, f TimelineFilters) (int, error)
}

// Service serves the per-mess audit trail.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of the mess's audit trail, newest first.
func (s *Service) Timeline(ctx context.Context, messID int64, f TimelineFilters) (Result, error) {
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}

	total, err := s.repo.CountTimeline(ctx, messID, f)
	if err != nil {
		return Result{}, err
	}
	rows, err := s.repo.TimelineWindow(ctx, messID, f, pageSize, (page-1)*pageSize)
	if err != nil {
		return Result{}, err
	}
	return Result{Rows: rows, Paging: shared.NewPagination(page, pageSize, total)}, nil
}

// Export returns the whole filtered timeline without paging, for CSV export.
func (s *Service) Export(ctx context.Context, messID int64, f TimelineFilters) ([]Entry, error) {
	total, err := s.repo.CountTimeline(ctx, messID, f)
	if err != nil {
		return nil, err
	}
	return s.repo.TimelineWindow(ctx, messID, f, total, 0)
}
