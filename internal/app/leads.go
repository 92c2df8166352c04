package app

import (
	"context"
	"strings"

	"renda-edge/internal/common/email"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/leads"
)

// initializeLeads fans contact notifications out to every configured channel.
// With none configured contacts are only stored.
func (app *App) initializeLeads(context.Context) error {
	var publishers []leads.Publisher

	if app.Config.AMQPURL != "" {
		pub, err := leads.NewAMQPPublisher(app.Config.AMQPURL, app.Config.LeadsExchange, leads.DialAMQP, app.Logger)
		if err != nil {
			return err
		}
		publishers = append(publishers, pub)
		app.Logger.Info("Leads: AMQP enabled", logging.String("exchange", app.Config.LeadsExchange))
	}

	if app.Config.SMTPEnabled {
		mailer := email.NewService(email.Config{
			Host:     app.Config.SMTPHost,
			Port:     app.Config.SMTPPort,
			Username: app.Config.SMTPUsername,
			Password: app.Config.SMTPPassword,
			From:     app.Config.SMTPFrom,
		}, app.Logger)
		to := splitList(app.Config.LeadsNotifyEmail)
		publishers = append(publishers, leads.NewEmailPublisher(mailer, to, app.Config.PublicBaseURL, app.Logger))
		app.Logger.Info("Leads: email enabled", logging.Strings("to", to))
	}

	if len(publishers) == 0 {
		app.Logger.Info("Leads: no notification channel configured")
	}
	app.Leads = leads.NewMulti(app.Logger, publishers...)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
