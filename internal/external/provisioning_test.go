package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"onboard/internal/types"
)

func provisionableRecord() *types.AnswerRecord {
	record := types.DefaultAnswerRecord()
	record.Slug = "acme"
	record.CompanyTradingName = "Acme"
	record.BusinessSummary = "Widget wholesaler"
	record.ContactFirstName = "Jo"
	record.ContactLastName = "Nakamura"
	record.Email = "jo@acme.example.com"
	record.SMSNumber = "+61400000000"
	logo := "https://cdn.example.com/logo.png"
	record.LogoURL = &logo
	return &record
}

func newTestProvisioner(t *testing.T, url string) *ProvisioningClient {
	t.Helper()
	c := NewProvisioningClient(&http.Client{Timeout: 5 * time.Second}, ProvisioningClientConfig{
		URL:      url,
		Hostname: "awesomate.ai",
		Timezone: "Australia/Perth",
	})
	c.nowFn = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	c.passwordFn = func() string { return "test-password" }
	return c
}

func TestProvision_PayloadShape(t *testing.T) {
	var captured provisionPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		w.Write([]byte(`{"status":"created"}`))
	}))
	defer server.Close()

	client := newTestProvisioner(t, server.URL)
	if err := client.Provision(context.Background(), provisionableRecord()); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	if captured.N8N != "Yes" || captured.VitalSync != "Yes" {
		t.Errorf("expected both platform flags, got %+v", captured)
	}
	if captured.Subdomain != "acme" || captured.BusinessName != "Acme" {
		t.Errorf("unexpected identity fields: %+v", captured)
	}
	if captured.Timezone != "(GMT +08:00) Perth" {
		t.Errorf("unexpected timezone: %s", captured.Timezone)
	}
	if captured.User.Email != "jo@acme.example.com" || captured.User.Password != "test-password" {
		t.Errorf("unexpected user: %+v", captured.User)
	}
	if captured.Props.N8N.Hostname != "awesomate.ai" {
		t.Errorf("unexpected hostname: %s", captured.Props.N8N.Hostname)
	}
	if captured.Props.Branding.ThemeColor != "#e9484d" || captured.Props.Branding.LogoURL == "" {
		t.Errorf("unexpected branding: %+v", captured.Props.Branding)
	}
}

func TestProvision_LegalNameFallback(t *testing.T) {
	var captured provisionPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	record := provisionableRecord()
	record.CompanyTradingName = ""
	record.CompanyLegalName = "Acme Pty Ltd"

	client := newTestProvisioner(t, server.URL)
	if err := client.Provision(context.Background(), record); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if captured.BusinessName != "Acme Pty Ltd" {
		t.Errorf("expected legal name fallback, got %s", captured.BusinessName)
	}
}

func TestProvision_UpstreamErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"subdomain already exists"}`))
	}))
	defer server.Close()

	client := newTestProvisioner(t, server.URL)
	err := client.Provision(context.Background(), provisionableRecord())
	if err == nil {
		t.Fatal("expected provisioning error")
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeUpstreamProvisioning {
		t.Fatalf("expected upstream_provisioning error, got %v", err)
	}
	if appErr.Message != "subdomain already exists" {
		t.Errorf("expected upstream message, got %q", appErr.Message)
	}
}

func TestProvision_NotConfigured(t *testing.T) {
	client := newTestProvisioner(t, "")
	err := client.Provision(context.Background(), provisionableRecord())
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeUpstreamProvisioning {
		t.Errorf("expected upstream_provisioning error, got %v", err)
	}
}

func TestFormatTimezone(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		zone string
		want string
	}{
		{"perth", "Australia/Perth", "(GMT +08:00) Perth"},
		{"kathmandu offset minutes", "Asia/Kathmandu", "(GMT +05:45) Kathmandu"},
		{"underscores become spaces", "America/New_York", "(GMT -05:00) New York"},
		{"unknown zone falls back", "Not/AZone", "(GMT +00:00) UTC"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatTimezone(tc.zone, at); got != tc.want {
				t.Errorf("formatTimezone(%s) = %s, want %s", tc.zone, got, tc.want)
			}
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	a := generatePassword()
	b := generatePassword()
	if a == b {
		t.Error("passwords should be random")
	}
	if len(a) < 12 {
		t.Errorf("password too short: %s", a)
	}
}
