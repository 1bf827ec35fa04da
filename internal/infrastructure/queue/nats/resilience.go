package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/box-labels/internal/core/domain"
	"github.com/kirillkom/box-labels/internal/infrastructure/resilience"
)

var classifyNATSError = resilience.TransientClassifier(isTransientNATSError)

func isTransientNATSError(err error) bool {
	return errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionReconnecting)
}

func wrapTemporaryIfNeeded(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	}
	return err
}
