package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/parkpass/internal/checkout"
	"github.com/example/parkpass/internal/services"
)

// mapFlowError converts orchestration errors into HTTP responses.
// Validation problems are client errors; vendor rejections carry the
// gateway code; upstream failures come back as bad-gateway with the
// normalized message, never as raw transport errors.
func mapFlowError(err error) error {
	var validation *checkout.ValidationError
	if errors.As(err, &validation) {
		return fiber.NewError(fiber.StatusBadRequest, validation.Message)
	}

	if errors.Is(err, services.ErrMissingIdentifier) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if errors.Is(err, checkout.ErrTransactionNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}

	var vendor *services.VendorError
	if errors.As(err, &vendor) {
		return fiber.NewError(fiber.StatusPaymentRequired, vendor.Error())
	}

	var backend *services.BackendError
	if errors.As(err, &backend) {
		status := fiber.StatusBadGateway
		switch backend.Status {
		case fiber.StatusUnauthorized:
			status = fiber.StatusUnauthorized
		case fiber.StatusNotFound:
			status = fiber.StatusNotFound
		case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity, fiber.StatusConflict:
			status = fiber.StatusBadRequest
		}
		return fiber.NewError(status, backend.Message)
	}

	return err
}
