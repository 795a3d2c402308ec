package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	ErrInvalidBody      = errors.New("the body of your request contains invalid or un-parseable data. Please check and try again")
	ErrRequestBodyEmpty = errors.New("the request body must not be empty")
)

// BindData binds the JSON request body to the target struct and returns
// a caller-friendly error when that is not possible.
func BindData(c *gin.Context, data any) error {
	if c.Request.Body == nil {
		return ErrRequestBodyEmpty
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ErrInvalidBody
	}

	if len(body) == 0 {
		return ErrRequestBodyEmpty
	}

	err = json.Unmarshal(body, data)
	if err != nil {
		return ErrInvalidBody
	}

	return nil
}

// Actor returns the acting identity for audit attribution. The gateway
// in front of this service sets X-Actor after authentication.
func Actor(c *gin.Context) string {
	actor := c.GetHeader("X-Actor")
	if actor == "" {
		return "anonymous"
	}

	return actor
}

func OptionsGet(c *gin.Context) {
	c.Header("allow", "GET")
	c.Status(http.StatusNoContent)
}

func OptionsGetPost(c *gin.Context) {
	c.Header("allow", "GET, POST")
	c.Status(http.StatusNoContent)
}

func OptionsGetPatch(c *gin.Context) {
	c.Header("allow", "GET, PATCH")
	c.Status(http.StatusNoContent)
}

func OptionsPost(c *gin.Context) {
	c.Header("allow", "POST")
	c.Status(http.StatusNoContent)
}
