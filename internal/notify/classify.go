package notify

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

// permanentCodes are AWS error codes that no retry will fix.
var permanentCodes = map[string]bool{
	"MessageRejected":                         true,
	"MailFromDomainNotVerifiedException":      true,
	"AccountSuspendedException":               true,
	"BadRequestException":                     true,
	"NotFoundException":                       true,
	"ValidationException":                     true,
	"AccessDeniedException":                   true,
	"InvalidParameterValue":                   true,
	"InvalidMessageContents":                  true,
	"QueueDoesNotExist":                       true,
	"AWS.SimpleQueueService.NonExistentQueue": true,
}

// Classify wraps err as domain.ErrPermanent or domain.ErrTransport.
// Errors already classified are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrPermanent) || errors.Is(err, domain.ErrTransport) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Transport(err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && permanentCodes[apiErr.ErrorCode()] {
		return domain.Permanent(err)
	}
	return domain.Transport(err)
}
