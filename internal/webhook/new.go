package webhook

import (
	pkgLog "code-storage-client/pkg/log"
	"code-storage-client/pkg/storage"
)

type Handler struct {
	security *SecurityValidator
	store    *EventStore
	secret   string
	options  storage.WebhookValidationOptions
	l        pkgLog.Logger
}

func NewHandler(
	securityConfig SecurityConfig,
	store *EventStore,
	l pkgLog.Logger,
) *Handler {
	return &Handler{
		security: NewSecurityValidator(securityConfig),
		store:    store,
		secret:   securityConfig.Secret,
		options:  storage.WebhookValidationOptions{MaxAgeSeconds: securityConfig.MaxAgeSeconds},
		l:        l,
	}
}
