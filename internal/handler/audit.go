package handler

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Aincrad-Flux/TWIN/internal/model"
	"github.com/Aincrad-Flux/TWIN/internal/response"
	"github.com/Aincrad-Flux/TWIN/internal/storage"
)

type AuditLister interface {
	ListRecent(ctx context.Context, limit int) ([]model.AuditIndexEntry, error)
}

type ArchiveLister interface {
	ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// AuditHandler exposes the optional audit sinks. A nil Index or Archive makes
// the matching route answer 503.
type AuditHandler struct {
	Index         AuditLister
	Archive       ArchiveLister
	ArchivePrefix string
	Log           zerolog.Logger
}

type recordsQuery struct {
	Limit int `query:"limit" validate:"min=0,max=1000"`
}

// Records handles GET /api/audit/records.
func (h *AuditHandler) Records(c echo.Context) error {
	if h.Index == nil {
		return response.ServiceUnavailable(c, "Audit index not configured", "IndexDisabled")
	}
	q := recordsQuery{Limit: 50}
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	list, err := h.Index.ListRecent(c.Request().Context(), q.Limit)
	if err != nil {
		h.Log.Error().Err(err).Msg("list audit records failed")
		return response.InternalError(c, "Failed to list audit records", "InternalError")
	}
	return response.List(c, "records", list, nil)
}

// ArchiveObjects handles GET /api/logs/archive.
func (h *AuditHandler) ArchiveObjects(c echo.Context) error {
	if h.Archive == nil {
		return response.ServiceUnavailable(c, "Archive storage not configured", "ArchiveDisabled")
	}
	prefix := c.QueryParam("prefix")
	if prefix == "" {
		prefix = h.ArchivePrefix
	}
	list, err := h.Archive.ListObjects(c.Request().Context(), prefix)
	if err != nil {
		h.Log.Error().Err(err).Str("prefix", prefix).Msg("list archived objects failed")
		return response.InternalError(c, "Failed to list archived records", "InternalError")
	}
	return response.List(c, "objects", list, nil)
}
