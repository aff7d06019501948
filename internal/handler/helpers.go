package handler

import (
	"net/http"
	"reflect"
	"strings"

	"tillshift/internal/apierror"
	"tillshift/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// decimal.Decimal is a struct; expose it to min/max as a float.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Report fields by their JSON names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// requiredFields is implemented by requests whose amounts must be present
// even when zero, which the required tag cannot express for decimals.
type requiredFields interface {
	MissingFields() map[string]string
}

// bindJSON binds the JSON body and runs go-playground/validator tags,
// returning every failing field. ok is false only after a 400 for a body
// that is not JSON at all.
func bindJSON(c *gin.Context, req interface{}) (fields map[string]string, ok bool) {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return nil, false
	}
	fields = make(map[string]string)
	if err := validate.Struct(req); err != nil {
		verrs, isVal := err.(validator.ValidationErrors)
		if !isVal {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return nil, false
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	if rf, isReq := req.(requiredFields); isReq {
		for k, v := range rf.MissingFields() {
			fields[k] = v
		}
	}
	return fields, true
}

// bindAndValidate is bindJSON for requests with no further service-side
// checks. Returns false after writing the response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	fields, ok := bindJSON(c, req)
	if !ok {
		return false
	}
	if len(fields) > 0 {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// mergeFields adds extra into fields without overwriting; binding errors
// name the more precise rule.
func mergeFields(fields, extra map[string]string) map[string]string {
	for k, v := range extra {
		if _, seen := fields[k]; !seen {
			fields[k] = v
		}
	}
	return fields
}

// parseUUIDParam reads a path parameter as a uuid, writing a 422 on failure.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{name: "uuid"}))
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses an optional query parameter. Invalid values are recorded
// in fields.
func queryUUID(c *gin.Context, name string, fields map[string]string) *uuid.UUID {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		fields[name] = "uuid"
		return nil
	}
	return &id
}

func forbidOutlet(c *gin.Context) {
	c.JSON(http.StatusForbidden, apierror.New("outlet not accessible with this token"))
}

// writeServiceError maps a typed service error to its HTTP status.
func writeServiceError(c *gin.Context, err error) {
	e, ok := service.AsError(err)
	if !ok {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("untyped service error")
		c.JSON(http.StatusInternalServerError, apierror.New("internal server error"))
		return
	}
	switch e.Kind {
	case service.KindValidation:
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(e.Fields))
	case service.KindConflict:
		var shiftID *string
		if e.ShiftID != nil {
			id := e.ShiftID.String()
			shiftID = &id
		}
		c.JSON(http.StatusConflict, apierror.NewConflict(e.Message, shiftID))
	case service.KindNotFound:
		c.JSON(http.StatusNotFound, apierror.New(e.Message))
	case service.KindPersistence:
		log.Error().Err(e.Err).Str("path", c.FullPath()).Bool("outcome_unknown", e.OutcomeUnknown).Msg(e.Message)
		status := http.StatusServiceUnavailable
		if e.OutcomeUnknown {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, apierror.NewUnavailable(e.Message, e.OutcomeUnknown))
	default:
		c.JSON(http.StatusInternalServerError, apierror.New("internal server error"))
	}
}
