package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Aincrad-Flux/TWIN/internal/logger"
	"github.com/Aincrad-Flux/TWIN/internal/logstore"
	"github.com/Aincrad-Flux/TWIN/internal/response"
)

const defaultRetentionDays = 30

// LogHandler serves /api/logs. Every route sits behind the admin key.
type LogHandler struct {
	Store *logstore.Store
	Log   zerolog.Logger
}

type fileView struct {
	logstore.FileInfo
	SizeFormatted string `json:"sizeFormatted"`
}

func viewFiles(files []logstore.FileInfo) []fileView {
	out := make([]fileView, 0, len(files))
	for _, f := range files {
		out = append(out, fileView{FileInfo: f, SizeFormatted: formatSize(f.Size)})
	}
	return out
}

func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

type listQuery struct {
	Limit int `query:"limit" validate:"min=0"`
}

// List handles GET /api/logs.
func (h *LogHandler) List(c echo.Context) error {
	var q listQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	files, err := h.Store.List(q.Limit)
	if err != nil {
		return h.storeError(c, err, "Failed to retrieve log files")
	}
	h.Log.Info().Str("requested_by", c.RealIP()).Int("file_count", len(files)).Msg("log files listed")
	return response.List(c, "files", viewFiles(files), nil)
}

type kindView struct {
	logstore.KindStats
	SizeFormatted string `json:"sizeFormatted"`
}

// Stats handles GET /api/logs/stats.
func (h *LogHandler) Stats(c echo.Context) error {
	st, err := h.Store.Stats()
	if err != nil {
		return h.storeError(c, err, "Failed to retrieve log statistics")
	}
	byType := make(map[logstore.Kind]kindView, len(st.ByType))
	for k, v := range st.ByType {
		byType[k] = kindView{KindStats: v, SizeFormatted: formatSize(v.Size)}
	}
	return response.OK(c, map[string]any{
		"totalFiles":         st.TotalFiles,
		"totalSize":          st.TotalSize,
		"totalSizeFormatted": formatSize(st.TotalSize),
		"byType":             byType,
		"recentActivity":     st.RecentActivity,
	}, "")
}

type readQuery struct {
	Lines  int    `query:"lines" validate:"min=0"`
	Tail   bool   `query:"tail"`
	Filter string `query:"filter" validate:"max=256"`
}

// File handles GET /api/logs/file/*. The wildcard may contain a date folder.
func (h *LogHandler) File(c echo.Context) error {
	var q readQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	name := c.Param("*")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	res, err := h.Store.Read(name, logstore.ReadOptions{Lines: q.Lines, Tail: q.Tail, Filter: q.Filter})
	if err != nil {
		if errors.Is(err, logstore.ErrAccessDenied) {
			h.Log.Warn().Str("requested_by", c.RealIP()).Str("file", logger.Sanitize(name)).Msg("log file request outside logs directory")
		}
		return h.storeError(c, err, "Failed to retrieve log file content")
	}
	if res.IsDocument() {
		return response.OK(c, res.Document, "")
	}
	return response.OK(c, res, "")
}

type tailQuery struct {
	Lines int `query:"lines" validate:"min=0"`
}

// Errors handles GET /api/logs/errors: the tail of error.log.
func (h *LogHandler) Errors(c echo.Context) error {
	return h.tail(c, logger.ErrorFile, 50, "Failed to retrieve error logs")
}

// Combined handles GET /api/logs/combined: the tail of combined.log.
func (h *LogHandler) Combined(c echo.Context) error {
	return h.tail(c, logger.CombinedFile, 100, "Failed to retrieve combined logs")
}

func (h *LogHandler) tail(c echo.Context, file string, lines int, failure string) error {
	q := tailQuery{Lines: lines}
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	res, err := h.Store.Read(file, logstore.ReadOptions{Lines: q.Lines, Tail: true})
	if err != nil {
		return h.storeError(c, err, failure)
	}
	return response.OK(c, res, "")
}

type searchQuery struct {
	Q             string `query:"q"`
	File          string `query:"file"`
	Limit         int    `query:"limit" validate:"min=0,max=10000"`
	CaseSensitive bool   `query:"case_sensitive"`
}

// Search handles GET /api/logs/search.
func (h *LogHandler) Search(c echo.Context) error {
	q := searchQuery{Limit: logstore.DefaultSearchLimit}
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	if q.Q == "" {
		return response.BadRequest(c, `Query parameter "q" is required`, "MissingQuery")
	}
	res, err := h.Store.Search(q.Q, logstore.SearchOptions{
		FilePattern:   q.File,
		Limit:         q.Limit,
		CaseSensitive: q.CaseSensitive,
	})
	if err != nil {
		return h.storeError(c, err, "Failed to search logs")
	}
	h.Log.Info().
		Str("requested_by", c.RealIP()).
		Str("query", logger.Sanitize(q.Q)).
		Int("result_count", res.TotalResults).
		Msg("log search completed")
	return response.OK(c, res, "")
}

type cleanupQuery struct {
	Days int `query:"days" validate:"min=0"`
}

// Cleanup handles DELETE /api/logs/cleanup.
func (h *LogHandler) Cleanup(c echo.Context) error {
	q := cleanupQuery{Days: defaultRetentionDays}
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	res, err := h.Store.Prune(q.Days)
	if err != nil {
		return h.storeError(c, err, "Failed to clean up logs")
	}
	h.Log.Info().
		Str("requested_by", c.RealIP()).
		Int("days_to_keep", q.Days).
		Int("deleted_count", res.DeletedCount).
		Msg("log cleanup completed")
	return response.OK(c, map[string]any{
		"deletedCount":         res.DeletedCount,
		"deletedSize":          res.DeletedSize,
		"deletedSizeFormatted": formatSize(res.DeletedSize),
		"remainingFiles":       res.RemainingFiles,
		"removedDirs":          res.RemovedDirs,
	}, "Log cleanup completed successfully")
}

// WebhooksForDate handles GET /api/logs/webhooks/:date.
func (h *LogHandler) WebhooksForDate(c echo.Context) error {
	date := c.Param("date")
	files, err := h.Store.WebhooksForDate(date)
	if err != nil {
		return h.storeError(c, err, "Failed to retrieve webhook logs for specified date")
	}
	return response.List(c, "files", viewFiles(files), map[string]any{"date": date})
}

type recentQuery struct {
	Limit int `query:"limit" validate:"min=0"`
}

// RecentWebhooks handles GET /api/logs/webhooks/recent.
func (h *LogHandler) RecentWebhooks(c echo.Context) error {
	q := recentQuery{Limit: logstore.DefaultRecentLimit}
	if err := bindQuery(c, &q); err != nil {
		return err
	}
	files, err := h.Store.RecentWebhooks(q.Limit)
	if err != nil {
		return h.storeError(c, err, "Failed to retrieve recent webhook logs")
	}
	return response.List(c, "files", viewFiles(files), map[string]any{"period": "last 24 hours"})
}

// storeError maps logstore errors onto the API envelope. Unexpected errors
// are logged in full and answered with a generic message.
func (h *LogHandler) storeError(c echo.Context, err error, failure string) error {
	switch {
	case errors.Is(err, logstore.ErrAccessDenied):
		return response.Forbidden(c, "Access denied to requested file", "AccessDenied")
	case errors.Is(err, logstore.ErrNotFound):
		return response.NotFound(c, "Log file not found", "NotFound")
	case errors.Is(err, logstore.ErrMalformed):
		return response.Unprocessable(c, "Log file could not be parsed", "Malformed")
	case errors.Is(err, logstore.ErrInvalidDate):
		return response.BadRequest(c, "Invalid date format. Use YYYY-MM-DD", "InvalidDate")
	case errors.Is(err, logstore.ErrEmptyQuery):
		return response.BadRequest(c, `Query parameter "q" is required`, "MissingQuery")
	case errors.Is(err, logstore.ErrInvalidRetention):
		return response.BadRequest(c, "days must not be negative", "InvalidRetention")
	}
	h.Log.Error().Err(err).Str("path", c.Request().URL.Path).Msg(failure)
	return response.InternalError(c, failure, "InternalError")
}

// bindQuery binds query parameters into q and validates it. Failures come back
// as a 400 *echo.HTTPError for the server's error handler.
func bindQuery(c echo.Context, q any) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters").SetInternal(err)
	}
	if err := c.Validate(q); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameters").SetInternal(err)
	}
	return nil
}
