package api

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEMsgpack is the content type for msgpack responses.
const MIMEMsgpack = "application/msgpack"

// WantsMsgpack reports whether the client asked for msgpack.
func WantsMsgpack(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEMsgpack)
}

// Respond encodes v as msgpack when the client accepts it, JSON otherwise.
func Respond(c echo.Context, status int, v interface{}) error {
	if !WantsMsgpack(c) {
		return c.JSON(status, v)
	}

	data, err := msgpack.Marshal(v)
	if err != nil {
		return NewInternalError("failed to encode response", err)
	}
	return c.Blob(status, MIMEMsgpack, data)
}
