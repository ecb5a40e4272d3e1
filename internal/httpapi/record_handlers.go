package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/labstack/echo/v4"

	"github.com/rosterhq/control-plane/internal/activity"
	roerrors "github.com/rosterhq/control-plane/internal/errors"
	"github.com/rosterhq/control-plane/internal/records"
	"github.com/rosterhq/control-plane/internal/resources"
)

// defaultActivityLimit bounds the activity feed returned per request when
// the caller doesn't specify one.
const defaultActivityLimit = 200

// RecordHandlers serves the /workflow-records surface: read/delete of
// execution records plus an operator-facing JSON Patch debug endpoint
// scoped to a record's mutable Context (never its frozen Spec), adapted
// from the teacher's IR-patching feature, plus a read-only activity feed.
type RecordHandlers struct {
	records  *records.Store
	activity *activity.Store
}

func NewRecordHandlers(recordStore *records.Store, activityStore *activity.Store) *RecordHandlers {
	return &RecordHandlers{records: recordStore, activity: activityStore}
}

func (h *RecordHandlers) Register(group *echo.Group) {
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.DELETE("/:id", h.Delete)
	group.PATCH("/:id/context", h.PatchContext)
	group.GET("/:id/activity", h.Activity)
}

// Activity returns the append-only activity log for a record, identified
// by its id as the execution_id, newest entries last.
func (h *RecordHandlers) Activity(c echo.Context) error {
	limit := defaultActivityLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	events, err := h.activity.ListByExecution(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

func (h *RecordHandlers) List(c echo.Context) error {
	workflow := c.QueryParam("workflow")
	if workflow == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "workflow query parameter is required"})
	}
	list, err := h.records.List(c.Request().Context(), namespaceOf(c), workflow)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *RecordHandlers) Get(c echo.Context) error {
	workflow := c.QueryParam("workflow")
	if workflow == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "workflow query parameter is required"})
	}
	rec, err := h.records.Get(c.Request().Context(), namespaceOf(c), workflow, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *RecordHandlers) Delete(c echo.Context) error {
	workflow := c.QueryParam("workflow")
	if workflow == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "workflow query parameter is required"})
	}
	if err := h.records.Delete(c.Request().Context(), namespaceOf(c), workflow, c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PatchContext applies an RFC 6902 JSON Patch to a record's Context map
// only, leaving Spec/Outputs/Errors/RunStatus untouched, then persists via
// the same records.Store.Update every other mutation path uses.
func (h *RecordHandlers) PatchContext(c echo.Context) error {
	ctx := c.Request().Context()
	workflow := c.QueryParam("workflow")
	if workflow == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "workflow query parameter is required"})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid patch body"})
	}

	patch, err := jsonpatch.DecodePatch(body)
	if err != nil {
		return writeError(c, roerrors.Wrap(roerrors.KindInvalidResource, "decode json patch", err))
	}

	rec, err := h.records.Get(ctx, namespaceOf(c), workflow, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	contextJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return writeError(c, roerrors.Wrap(roerrors.KindGeneric, "encode record context", err))
	}

	patched, err := patch.Apply(contextJSON)
	if err != nil {
		return writeError(c, roerrors.Wrap(roerrors.KindInvalidResource, "apply json patch", err))
	}

	var newContext map[string]resources.TypedResult
	if err := json.Unmarshal(patched, &newContext); err != nil {
		return writeError(c, roerrors.Wrap(roerrors.KindInvalidResource, "decode patched context", err))
	}
	rec.Context = newContext

	if err := h.records.Update(ctx, rec); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}
