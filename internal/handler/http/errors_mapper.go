package http

import (
	"errors"
	"net/http"

	"github.com/MKhiriev/go-care-keeper/internal/service"
	"github.com/MKhiriev/go-care-keeper/internal/store"
)

var errorStatusMap = map[error]int{
	service.ErrNotInitialized:       http.StatusServiceUnavailable,
	service.ErrEngineClosed:         http.StatusServiceUnavailable,
	store.ErrStorageUnavailable:     http.StatusServiceUnavailable,
	service.ErrEntityNotFound:       http.StatusNotFound,
	service.ErrInvalidEntity:        http.StatusBadRequest,
	service.ErrTransientSyncFailure: http.StatusBadGateway,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
