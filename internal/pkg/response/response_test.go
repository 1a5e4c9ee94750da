package response

import (
	"Realty/internal/service"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func errorStatus(err error) (int, string) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Error(c, err)
	return w.Code, w.Body.String()
}

func TestError(t *testing.T) {
	type req struct {
		ThreadID string `validate:"required"`
	}
	verr := validator.New().Struct(req{})

	code, body := errorStatus(verr)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.JSONEq(t, `{"ok":false,"error":"`+service.ErrParamInvalid.Error()+`"}`, body)

	code, _ = errorStatus(fmt.Errorf("mark read: %w", service.ErrThreadNotFound))
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = errorStatus(service.ErrDuplicateMessage)
	assert.Equal(t, http.StatusConflict, code)

	// 未登记的错误不外泄细节
	code, body = errorStatus(fmt.Errorf("dial tcp 10.0.0.5:3306: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.NotContains(t, body, "10.0.0.5")
}
