package services

import (
	"errors"

	"studio-project/microservices/tasks-service/models"
)

func asNotFound(err error) (*models.NotFoundError, bool) {
	var notFound *models.NotFoundError
	ok := errors.As(err, &notFound)
	return notFound, ok
}

func asTarget(err error, target interface{}) bool {
	return errors.As(err, target)
}
