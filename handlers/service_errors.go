package handlers

import (
	"net/http"

	"github.com/govconone/backend/services"
	"github.com/govconone/backend/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Pipeline internals never
// leak: clients see the stable shapes, operators see the full error in the log.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch services.GetErrorType(err) {
	case services.ErrorTypeValidation:
		if werr := utils.WriteBadRequest(w, err.Error(), details); werr != nil {
			logger.Error("failed to write bad request response", zap.Error(werr))
		}

	case services.ErrorTypeUnauthorized:
		if werr := utils.WriteUnauthorized(w, "Invalid token"); werr != nil {
			logger.Error("failed to write unauthorized response", zap.Error(werr))
		}

	case services.ErrorTypeInactiveAccount:
		if werr := utils.WriteUnauthorized(w, "Invalid or inactive user"); werr != nil {
			logger.Error("failed to write unauthorized response", zap.Error(werr))
		}

	case services.ErrorTypeConflict:
		if werr := utils.WriteConflict(w, err.Error(), details); werr != nil {
			logger.Error("failed to write conflict response", zap.Error(werr))
		}

	case services.ErrorTypeUpstream:
		logger.Error("upstream failure", zap.Error(err))
		if werr := utils.WriteInternalServerError(w, "Service temporarily unavailable"); werr != nil {
			logger.Error("failed to write internal error response", zap.Error(werr))
		}

	case services.ErrorTypeInternal:
		logger.Error("internal server error", zap.Error(err))
		if werr := utils.WriteInternalServerError(w, "An internal error occurred"); werr != nil {
			logger.Error("failed to write internal error response", zap.Error(werr))
		}

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if werr := utils.WriteInternalServerError(w, "An unexpected error occurred"); werr != nil {
			logger.Error("failed to write internal error response", zap.Error(werr))
		}
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{})
		for k, v := range fields {
			details[k] = v
		}
		if werr := utils.WriteBadRequest(w, "Validation failed", details); werr != nil {
			logger.Error("failed to write validation error response", zap.Error(werr))
		}
		return
	}

	if werr := utils.WriteBadRequest(w, err.Error(), nil); werr != nil {
		logger.Error("failed to write validation error response", zap.Error(werr))
	}
}
