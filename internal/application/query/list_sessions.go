package query

import (
	"context"

	"github.com/thesis-hub/thesis-scheduling-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST SESSIONS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListSessionsQuery filters and paginates a session listing.
type ListSessionsQuery struct {
	ProjectID *int64
	AdvisorID *int64
	Status    *session.Status
	Page      int
	PageSize  int
}

// ListSessionsResult is one page plus enough to render pagination controls.
type ListSessionsResult struct {
	Sessions   []*session.Session
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

type ListSessionsHandler struct {
	sessions session.Repository
}

func NewListSessionsHandler(sessions session.Repository) *ListSessionsHandler {
	return &ListSessionsHandler{sessions: sessions}
}

func (h *ListSessionsHandler) Handle(ctx context.Context, q ListSessionsQuery) (*ListSessionsResult, error) {
	opts := session.ListOptions{
		ProjectID: q.ProjectID,
		AdvisorID: q.AdvisorID,
		Status:    q.Status,
		Page:      q.Page,
		PageSize:  q.PageSize,
	}
	opts.Normalize()

	page, err := h.sessions.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	totalPages := page.Total / opts.PageSize
	if page.Total%opts.PageSize != 0 {
		totalPages++
	}

	return &ListSessionsResult{
		Sessions:   page.Sessions,
		Total:      page.Total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: totalPages,
	}, nil
}
