package controllers

import (
	"io"

	"github.com/clubline/clubline-backend/pkg/logger"
)

func testControllerLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}
