package utils

import (
	"net/http"

	"github.com/kataras/iris/v12"
)

// Machine-checkable error kinds surfaced as the "error" field of every
// failure response.
const (
	ErrUnauthenticated    = "unauthenticated"
	ErrForbidden          = "forbidden"
	ErrNotFound           = "not_found"
	ErrValidation         = "validation"
	ErrConflict           = "conflict"
	ErrPayloadRejected    = "payload_rejected"
	ErrStorageUnavailable = "storage_unavailable"
	ErrInternal           = "internal"
)

func JSONError(ctx iris.Context, status int, kind, message string) {
	ctx.StatusCode(status)
	ctx.JSON(iris.Map{"error": kind, "message": message})
}

func Forbidden(ctx iris.Context, message string) {
	JSONError(ctx, http.StatusForbidden, ErrForbidden, message)
}

func NotFound(ctx iris.Context, message string) {
	JSONError(ctx, http.StatusNotFound, ErrNotFound, message)
}

func Validation(ctx iris.Context, message string) {
	JSONError(ctx, http.StatusBadRequest, ErrValidation, message)
}

func Conflict(ctx iris.Context, message string) {
	JSONError(ctx, http.StatusConflict, ErrConflict, message)
}

func Internal(ctx iris.Context) {
	JSONError(ctx, http.StatusInternalServerError, ErrInternal, "internal server error")
}

type PageMeta struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
}

func JSONPage(ctx iris.Context, data interface{}, page, perPage int, total int64) {
	ctx.JSON(iris.Map{
		"data":  data,
		"meta":  PageMeta{Page: page, PerPage: perPage, Total: total},
		"links": iris.Map{},
	})
}
