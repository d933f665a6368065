package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"onboard/internal/types"

	"github.com/google/uuid"
)

// ProvisioningClientConfig holds the configuration for creating a
// ProvisioningClient.
type ProvisioningClientConfig struct {
	// URL is the provisioning webhook endpoint. Empty means provisioning
	// is disabled.
	URL string
	// Hostname is the parent domain workspaces are provisioned under.
	Hostname string
	// Timezone is the IANA zone name used for workspace defaults.
	Timezone string
	Logger   *slog.Logger
}

// ProvisioningClient implements Provisioner against the workspace
// provisioning webhook. Provisioning creates the customer's subdomain,
// branding, and initial user after payment succeeds.
type ProvisioningClient struct {
	base     *BaseClient
	url      string
	hostname string
	timezone string
	logger   *slog.Logger
	nowFn    func() time.Time
	// passwordFn generates the initial user password. Random by default;
	// injectable for tests.
	passwordFn func() string
}

// NewProvisioningClient creates a ProvisioningClient.
func NewProvisioningClient(httpClient *http.Client, cfg ProvisioningClientConfig) *ProvisioningClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"provisioning",
		RetryPolicy{
			MaxRetries: 1,
			MinWait:    time.Second,
			MaxWait:    5 * time.Second,
		},
		"Onboard/1.0",
	)

	return &ProvisioningClient{
		base:       base,
		url:        cfg.URL,
		hostname:   cfg.Hostname,
		timezone:   cfg.Timezone,
		logger:     logger,
		nowFn:      time.Now,
		passwordFn: generatePassword,
	}
}

// generatePassword produces a random one-time password for the initial
// workspace user. The user is forced to change it on first login.
func generatePassword() string {
	return "Awe-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// formatTimezone renders an IANA zone name in the provisioner's expected
// display form, e.g. "Australia/Perth" at +08:00 becomes "(GMT +08:00) Perth".
func formatTimezone(name string, at time.Time) string {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "(GMT +00:00) UTC"
	}

	_, offsetSeconds := at.In(loc).Zone()
	sign := "+"
	if offsetSeconds < 0 {
		sign = "-"
		offsetSeconds = -offsetSeconds
	}
	hours := offsetSeconds / 3600
	mins := (offsetSeconds % 3600) / 60

	city := name
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		city = name[idx+1:]
	}
	city = strings.ReplaceAll(city, "_", " ")

	return fmt.Sprintf("(GMT %s%02d:%02d) %s", sign, hours, mins, city)
}

// provisionPayload is the webhook request body.
type provisionPayload struct {
	N8N                 string         `json:"n8n"`
	VitalSync           string         `json:"vitalsync"`
	BusinessName        string         `json:"business_name"`
	BusinessDescription string         `json:"business_description"`
	Timezone            string         `json:"timezone"`
	User                provisionUser  `json:"user"`
	Subdomain           string         `json:"subdomain"`
	Props               provisionProps `json:"props"`
}

type provisionUser struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
}

type provisionProps struct {
	N8N      provisionN8N      `json:"n8n"`
	Branding provisionBranding `json:"branding"`
}

type provisionN8N struct {
	Hostname string `json:"hostname"`
}

type provisionBranding struct {
	LogoURL     string `json:"logo_url"`
	ThemeColor  string `json:"theme_color"`
	ThemeColor2 string `json:"theme_color2"`
}

// Provision posts the workspace creation request. It is called once, after
// payment succeeds, with the subdomain already confirmed available.
func (c *ProvisioningClient) Provision(ctx context.Context, record *types.AnswerRecord) error {
	if c.url == "" {
		return types.NewAppError(types.ErrCodeUpstreamProvisioning, "provisioning webhook is not configured", nil)
	}

	businessName := record.CompanyTradingName
	if businessName == "" {
		businessName = record.CompanyLegalName
	}

	logoURL := ""
	if record.LogoURL != nil {
		logoURL = *record.LogoURL
	}

	payload := provisionPayload{
		N8N:                 "Yes",
		VitalSync:           "Yes",
		BusinessName:        businessName,
		BusinessDescription: record.BusinessSummary,
		Timezone:            formatTimezone(c.timezone, c.nowFn()),
		User: provisionUser{
			FirstName: record.ContactFirstName,
			LastName:  record.ContactLastName,
			Email:     record.Email,
			Password:  c.passwordFn(),
			Phone:     record.SMSNumber,
		},
		Subdomain: record.Slug,
		Props: provisionProps{
			N8N: provisionN8N{Hostname: c.hostname},
			Branding: provisionBranding{
				LogoURL:     logoURL,
				ThemeColor:  record.ColorPrimary,
				ThemeColor2: record.ColorSecondary,
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode provisioning payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build provisioning request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamProvisioning, "provisioning request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var result struct {
			Error string `json:"error"`
		}
		msg := fmt.Sprintf("provisioning failed (%d)", resp.StatusCode)
		if json.Unmarshal(raw, &result) == nil && result.Error != "" {
			msg = result.Error
		}
		return types.NewAppError(types.ErrCodeUpstreamProvisioning, msg, nil)
	}

	c.logger.InfoContext(ctx, "workspace provisioned", "subdomain", record.Slug)
	return nil
}
