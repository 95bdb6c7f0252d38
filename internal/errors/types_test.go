package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGatewayErrorMessage(t *testing.T) {
	cause := errors.New("no factory")
	err := NewRouteError("ERR_ROUTE", "blog/[slug].go", cause).WithFile("pages/blog/[slug].go")

	assert.Equal(t, "[ERR_ROUTE] route:blog/[slug].go pages/blog/[slug].go failed to load route: no factory", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsRecoverable(err))
	assert.True(t, IsType(err, ErrorTypeRoute))
}

func TestGatewayErrorIs(t *testing.T) {
	err := fmt.Errorf("startup: %w", NewConfigError("ERR_PORT", "port out of range"))

	assert.ErrorIs(t, err, &GatewayError{Type: ErrorTypeConfig, Code: "ERR_PORT"})
	assert.NotErrorIs(t, err, &GatewayError{Type: ErrorTypeConfig, Code: "ERR_ENV"})
	assert.True(t, IsRecoverable(err))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeIO, "X", "y"))

	inner := NewIOError("ERR_READ", "read failed", errors.New("eof")).WithRoute("index.go")
	outer := Wrap(inner, ErrorTypeInternal, "ERR_LOAD", "load failed")

	assert.Equal(t, "index.go", outer.Route)
	assert.Equal(t, ErrorTypeInternal, outer.Type)
	assert.ErrorIs(t, outer, inner)
	assert.False(t, outer.Recoverable)

	cfg := Wrap(errors.New("bad"), ErrorTypeConfig, "ERR_CFG", "config")
	assert.True(t, cfg.Recoverable)
}

func TestFormatError(t *testing.T) {
	assert.Equal(t, "", FormatError(nil))
	assert.Equal(t, "plain", FormatError(errors.New("plain")))

	err := ErrPathTraversal("../etc").WithContext("key", "pages_dir")
	assert.Equal(t,
		"[ERR_PATH_TRAVERSAL] path traversal attempt detected\n  key: pages_dir\n  path: ../etc",
		FormatError(err))
}
