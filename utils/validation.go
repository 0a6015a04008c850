package utils

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
)

type validationError struct {
	ActualTag string `json:"tag"`
	Namespace string `json:"namespace"`
	Kind      string `json:"kind"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Param     string `json:"param"`
}

// HandleValidationErrors translates ReadJSON failures into a structured 400.
// Field-level failures from validator tags are itemized; anything else is a
// generic malformed-payload error.
func HandleValidationErrors(err error, ctx iris.Context) {
	if errs, ok := err.(validator.ValidationErrors); ok {
		fields := make([]validationError, 0, len(errs))
		for _, fe := range errs {
			fields = append(fields, validationError{
				ActualTag: fe.ActualTag(),
				Namespace: fe.Namespace(),
				Kind:      fe.Kind().String(),
				Type:      fe.Type().String(),
				Value:     fmtValue(fe.Value()),
				Param:     fe.Param(),
			})
		}
		ctx.StatusCode(http.StatusBadRequest)
		ctx.JSON(iris.Map{"error": ErrValidation, "message": "validation failed", "fields": fields})
		return
	}
	JSONError(ctx, http.StatusBadRequest, ErrValidation, "invalid request payload")
}

func fmtValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
