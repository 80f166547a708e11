package misc

import (
	"strconv"
	"strings"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

type ErrBadPathParam struct {
	Name  string
	Cause error
}

func (e *ErrBadPathParam) Error() string {
	return "invalid path parameter '" + e.Name + "'"
}
func (e *ErrBadPathParam) Unwrap() error {
	return e.Cause
}

// BindingPathID parses the ":id" path parameter into a types.ID
func BindingPathID(c *gin.Context) (types.ID, error) {
	return BindingPathIDOfName(c, "id")
}

func BindingPathIDOfName(c *gin.Context, name string) (types.ID, error) {
	raw := c.Param(name)
	id, err := types.ParseID(raw)
	if err != nil {
		return 0, &ErrBadPathParam{Name: name, Cause: err}
	}
	if id == 0 {
		return 0, &ErrBadPathParam{Name: name}
	}
	return id, nil
}

func StringReader(s string) *strings.Reader {
	return strings.NewReader(s)
}

func ParseBool(raw string, defaultValue bool) bool {
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return b
}
