package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/leadflow-api/internal/middleware"
	"github.com/noah-isme/leadflow-api/internal/models"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
	"github.com/noah-isme/leadflow-api/pkg/response"
)

// requireUser writes 401 and returns false when no user is attached.
func requireUser(c *gin.Context) (models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.User{}, false
	}
	return user, true
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
