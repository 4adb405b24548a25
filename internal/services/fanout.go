package services

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/collegedesk/collegedesk/pkg/mail"
	"github.com/collegedesk/collegedesk/pkg/metrics"
)

type emailRecipient struct {
	College string
	Address string
	Data    mail.TemplateData
}

// sendFanout delivers one templated email per recipient. A failure for one
// recipient is logged and the batch continues; a credential fault aborts the
// remaining sends since retrying would repeat the same fatal error. SMTP being
// disabled is not a fault.
func sendFanout(ctx context.Context, courier *mail.Courier, log *zap.Logger, template mail.Template, recipients []emailRecipient) error {
	if courier == nil {
		return nil
	}

	var errs error
	for _, rcpt := range recipients {
		if rcpt.Address == "" {
			log.Debug("skipping recipient without email", zap.String("college", rcpt.College))
			continue
		}

		err := courier.SendTemplate(ctx, rcpt.Address, template, rcpt.Data)
		if err == nil {
			metrics.EmailsSent.WithLabelValues(string(template), "sent").Inc()
			continue
		}
		if errors.Is(err, mail.ErrSMTPDisabled) {
			return errs
		}

		metrics.EmailsSent.WithLabelValues(string(template), "failed").Inc()
		errs = multierr.Append(errs, err)

		if mail.IsAuthError(err) {
			log.Error("email credential fault, aborting batch",
				zap.String("template", string(template)), zap.Error(err))
			return errs
		}

		log.Warn("email send failed, continuing batch",
			zap.String("template", string(template)),
			zap.String("college", rcpt.College), zap.Error(err))
	}

	return errs
}
