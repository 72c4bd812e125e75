package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/apperr"
)

const maxBodyBytes = 1 << 16

// StrictBinder decodes exactly one JSON object into the target and rejects
// unknown fields, trailing data and non-JSON content types.
type StrictBinder struct{}

func (StrictBinder) Bind(i interface{}, c echo.Context) error {
	req := c.Request()
	if ct := req.Header.Get(echo.HeaderContentType); !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		return apperr.Validation("Content-Type must be application/json")
	}
	if req.Body == nil {
		return apperr.Validation("Request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(i); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("Request body is required")
		}
		return apperr.Validation("Malformed request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.Validation("Request body must be a single JSON object")
	}
	return nil
}

// RequestValidator runs the Validate method of request types.
type RequestValidator struct{}

func (RequestValidator) Validate(i interface{}) error {
	if v, ok := i.(interface{ Validate() error }); ok {
		return v.Validate()
	}
	return nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}
