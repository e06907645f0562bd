package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gabrie-lhilarion/spacemania/internal/entity"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// SuccessResponse represents a successful response
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// ErrorResponse represents a failed response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// errorStatus picks the HTTP status for a domain error. conflictStatus lets
// booking creation report conflicts as 400.
func errorStatus(err error, conflictStatus int) int {
	switch entity.KindOf(err) {
	case entity.KindValidation:
		return http.StatusBadRequest
	case entity.KindConflict:
		return conflictStatus
	case entity.KindNotFound:
		return http.StatusNotFound
	case entity.KindAuthorization:
		// Someone else's booking is reported as missing.
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error, conflictStatus int) {
	status := errorStatus(err, conflictStatus)
	message := entity.PublicMessage(err)
	if entity.KindOf(err) == entity.KindAuthorization {
		message = entity.ErrBookingNotFound.Message
	}

	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	_ = c.Error(err)

	c.JSON(status, ErrorResponse{Success: false, Error: message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: message})
}

// bindingMessage turns a ShouldBindJSON error on req into a message that
// names the offending JSON field.
func bindingMessage(err error, req interface{}) string {
	if entity.KindOf(err) == entity.KindValidation {
		return entity.PublicMessage(err)
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		name := jsonFieldName(req, fe.StructField())

		unit := ""
		if fe.Kind() == reflect.String {
			unit = " characters"
		}

		switch fe.Tag() {
		case "required":
			return name + " is required"
		case "min":
			return fmt.Sprintf("%s must be at least %s%s", name, fe.Param(), unit)
		case "max":
			return fmt.Sprintf("%s must be at most %s%s", name, fe.Param(), unit)
		}
		return name + " is invalid"
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return typeErr.Field + " has the wrong type"
	}

	return "invalid request body"
}

func jsonFieldName(req interface{}, structField string) string {
	t := reflect.TypeOf(req)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		if f, ok := t.FieldByName(structField); ok {
			if name := strings.Split(f.Tag.Get("json"), ",")[0]; name != "" && name != "-" {
				return name
			}
		}
	}
	return structField
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
