package external

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"onboard/internal/billing"
	"onboard/internal/config"
)

// ClientRegistry holds all upstream service client interfaces. It is the
// single point of access for the rest of the application to reach the contact
// store, the payment gateway, and the workspace provisioner.
type ClientRegistry struct {
	Persistence PersistenceService
	Payment     PaymentGateway
	Provisioner Provisioner
}

// NewClientRegistry initializes all upstream clients.
// If cfg.IsTestMode is true or cfg.Environment is "local", the registry is
// populated with stub implementations that log actions without requiring real
// credentials. Otherwise, real clients are initialized with strict timeouts.
func NewClientRegistry(cfg *config.Config, resolver *billing.Resolver, calc *billing.Calculator, logger *slog.Logger) (*ClientRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.IsTestMode || cfg.Environment == "local" {
		logger.Info("initializing stub upstream clients", "environment", cfg.Environment)
		return &ClientRegistry{
			Persistence: NewStubPersistence(logger),
			Payment:     NewStubPaymentGateway(logger),
			Provisioner: NewStubProvisioner(logger),
		}, nil
	}

	persistence := NewVitalsClient(
		&http.Client{Timeout: 10 * time.Second},
		VitalsClientConfig{
			GraphQLURL:   cfg.Persistence.GraphQLURL,
			APIKey:       cfg.Persistence.APIKey,
			SlugCheckURL: cfg.Persistence.SlugCheckURL,
			SlugCheckKey: cfg.Persistence.SlugCheckKey,
			Logger:       logger,
		},
	)

	var payment PaymentGateway
	switch cfg.Payment.Provider {
	case config.PaymentProviderWebhook:
		payment = NewWebhookGateway(
			&http.Client{Timeout: 30 * time.Second},
			resolver,
			WebhookGatewayConfig{
				URL:    cfg.Payment.WebhookURL,
				Logger: logger,
			},
		)
	case config.PaymentProviderStripe:
		payment = NewStripeGateway(
			&http.Client{Timeout: 20 * time.Second},
			calc,
			StripeGatewayConfig{
				SecretKey: cfg.Payment.StripeSecretKey,
				Logger:    logger,
			},
		)
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Payment.Provider)
	}

	provisioner := NewProvisioningClient(
		&http.Client{Timeout: 60 * time.Second},
		ProvisioningClientConfig{
			URL:      cfg.Provisioning.WebhookURL,
			Hostname: cfg.Provisioning.Hostname,
			Timezone: cfg.Provisioning.Timezone,
			Logger:   logger,
		},
	)

	return &ClientRegistry{
		Persistence: persistence,
		Payment:     payment,
		Provisioner: provisioner,
	}, nil
}
