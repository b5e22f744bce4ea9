package http

import (
	"errors"
	"net/http"

	"budgettable/internal/core"
	"budgettable/internal/log"
)

// Response texts shared with the existing front end.
const (
	msgSeeded            = "Создана структура как в примере Excel"
	msgAlreadySeeded     = "Таблица уже инициализирована"
	msgPeriodDeleted     = "Период удален"
	msgRowUpdated        = "Поля обновлены"
	msgRowDeleted        = "Строка удалена"
	detailRowNotFound    = "Строка не найдена"
	detailPeriodNotFound = "Период не найден"
	detailParentNotFound = "Родительская строка не найдена"
	detailInternal       = "Internal Server Error"
	detailRateLimited    = "Rate limit exceeded. Please try again later."
	serviceName          = "Superset-1C Bridge"
	serviceStatus        = "API работает"
)

// notFoundDetail names the missing entity in the client's language.
func notFoundDetail(err error) string {
	var nf *core.NotFoundError
	if errors.As(err, &nf) && nf.Entity == core.EntityPeriod {
		return detailPeriodNotFound
	}
	return detailRowNotFound
}

// writeServiceError maps err to a status and a detail. Internal errors are
// logged and hidden from the client.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusNotFound:
		ErrorResponse(status, notFoundDetail(err)).Write(w)
	case http.StatusUnprocessableEntity:
		ErrorResponse(status, err.Error()).Write(w)
	default:
		logger := log.NewStructuredLogger(log.FromContext(r.Context()))
		logger.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", ""))
		ErrorResponse(status, detailInternal).Write(w)
	}
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, detailRateLimited).Write(w)
}
