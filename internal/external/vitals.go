package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"onboard/internal/types"
)

// Display-value maps from internal enum keys to the remote contact schema's
// dropdown values. The remote API rejects unknown enum strings, so every
// enum field goes through one of these before it is sent.
var (
	planDisplay = map[types.PlanKey]string{
		types.PlanEssentials:  "Essentials",
		types.PlanSupportPlus: "Support Plus",
		types.PlanPro:         "Pro",
		types.PlanEmbedded:    "Embedded",
	}

	techLevelDisplay = map[types.TechLevel]string{
		types.TechSelfSufficient: "Self Sufficient",
		types.TechSomeHelp:       "Some Help",
		types.TechFullService:    "Full Service",
	}

	workflowVolumeDisplay = map[types.WorkflowVolume]string{
		types.VolumeStarter:    "Starter",
		types.VolumeGrowing:    "Growing",
		types.VolumeFullEngine: "Full Engine",
		types.VolumeUnsure:     "Unsure",
	}

	setupChoiceDisplay = map[types.SetupChoice]string{
		types.SetupSelf:     "Self",
		types.SetupAssisted: "Assisted",
	}

	billingDisplay = map[types.BillingFrequency]string{
		types.BillingMonthly: "Monthly",
		types.BillingYearly:  "Yearly",
	}

	teamSizeDisplay = map[types.TeamSize]string{
		types.TeamSolo:        "Solo",
		types.TeamTwoToFive:   "2-5",
		types.TeamSixToTwenty: "6-20",
		types.TeamTwentyPlus:  "20+",
	}
)

// Remote onboarding_status values. Only MarkComplete may write "Completed";
// a late-arriving comprehensive update must never regress it.
const (
	statusInProgress = "In Progress"
	statusCompleted  = "Completed"
)

// VitalsClientConfig holds the configuration for creating a VitalsClient.
type VitalsClientConfig struct {
	// GraphQLURL is the contact store's GraphQL endpoint.
	GraphQLURL string
	// APIKey authenticates GraphQL calls via the Api-Key header.
	APIKey types.SecretString
	// SlugCheckURL is the separate read-only endpoint for subdomain lookups.
	SlugCheckURL string
	// SlugCheckKey authenticates slug lookups.
	SlugCheckKey types.SecretString
	Logger       *slog.Logger
}

// VitalsClient implements PersistenceService against the VitalSync contact
// store's GraphQL API through BaseClient, inheriting circuit breaking,
// retries, and error mapping.
type VitalsClient struct {
	base         *BaseClient
	gqlURL       string
	apiKey       types.SecretString
	slugCheckURL string
	slugCheckKey types.SecretString
	logger       *slog.Logger
	nowFn        func() time.Time
}

// NewVitalsClient creates a VitalsClient. The httpClient timeout should be
// kept short; persistence writes run on the request's critical path only
// during checkout.
func NewVitalsClient(httpClient *http.Client, cfg VitalsClientConfig) *VitalsClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"vitalsync",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"Onboard/1.0",
	)

	return &VitalsClient{
		base:         base,
		gqlURL:       cfg.GraphQLURL,
		apiKey:       cfg.APIKey,
		slugCheckURL: cfg.SlugCheckURL,
		slugCheckKey: cfg.SlugCheckKey,
		logger:       logger,
		nowFn:        time.Now,
	}
}

// gqlError is a single error entry in a GraphQL response envelope.
type gqlError struct {
	Message string `json:"message"`
}

// gql executes a GraphQL document and decodes the data envelope into out.
// GraphQL-level errors are mapped to upstream persistence AppErrors even when
// the HTTP status is 200.
func (c *VitalsClient) gql(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode graphql request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gqlURL, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build graphql request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", c.apiKey.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamPersistence, "contact store request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return types.NewAppError(
			types.ErrCodeUpstreamPersistence,
			fmt.Sprintf("contact store returned %d", resp.StatusCode),
			fmt.Errorf("body: %s", raw),
		)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []gqlError      `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamPersistence, "failed to decode graphql response", err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, 0, len(envelope.Errors))
		for _, e := range envelope.Errors {
			msgs = append(msgs, e.Message)
		}
		return types.NewAppError(
			types.ErrCodeUpstreamPersistence,
			"contact store rejected the operation",
			fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; ")),
		)
	}

	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return types.NewAppError(types.ErrCodeUpstreamPersistence, "failed to decode graphql data", err)
		}
	}
	return nil
}

// contactFields builds the full contact-schema payload from the record.
// Only answered fields are included; enum keys are translated to the remote
// display values and the country name to its ISO code.
//
// The referrer relationship is deliberately absent: setting FK fields through
// the create/update mutations fails server-side, so the affiliate code is
// stored as a plain aff_code column instead.
func contactFields(record *types.AnswerRecord) map[string]any {
	fields := map[string]any{}

	if record.WebsiteURL != "" {
		fields["website"] = record.WebsiteURL
	}
	if record.Slug != "" {
		fields["subdomain_slug"] = record.Slug
	}
	if record.CompanyTradingName != "" {
		fields["company"] = record.CompanyTradingName
	}
	if record.CompanyLegalName != "" {
		fields["business_name"] = record.CompanyLegalName
	}
	if record.Email != "" {
		fields["email"] = record.Email
	}
	if record.SMSNumber != "" {
		fields["sms_number"] = record.SMSNumber
	}
	if record.ContactFirstName != "" {
		fields["first_name"] = record.ContactFirstName
	}
	if record.ContactLastName != "" {
		fields["last_name"] = record.ContactLastName
	}
	if record.Country != "" {
		fields["country"] = CountryToCode(record.Country)
	}
	if record.LogoURL != nil && *record.LogoURL != "" {
		fields["logo_url"] = *record.LogoURL
	}
	if record.ColorPrimary != "" {
		fields["colour_primary"] = record.ColorPrimary
	}
	if record.ColorSecondary != "" {
		fields["colour_other"] = record.ColorSecondary
	}

	if record.InitialPlan != "" {
		fields["initial_plan"] = planDisplay[record.InitialPlan]
	}
	if record.TechnicalLevel != nil {
		fields["technical_level"] = techLevelDisplay[*record.TechnicalLevel]
	}
	if record.WorkflowVolume != nil {
		fields["workflow_volume"] = workflowVolumeDisplay[*record.WorkflowVolume]
	}
	if record.RecommendedPlan != nil {
		fields["recommended_plan"] = planDisplay[*record.RecommendedPlan]
	}
	// final_plan always reflects the active plan so downstream reporting
	// never sees an empty column after a recommendation exists.
	if active := record.ActivePlan(); active != "" {
		fields["final_plan"] = planDisplay[active]
	}

	if record.Billing != "" {
		fields["billing"] = billingDisplay[record.Billing]
	}
	if record.CredentialSetup != nil {
		fields["credential_setup"] = setupChoiceDisplay[*record.CredentialSetup]
	}
	if record.AIAgentSetup != nil {
		fields["ai_agent_setup"] = setupChoiceDisplay[*record.AIAgentSetup]
	}
	if record.WorkflowSetup != nil {
		fields["workflow_setup"] = setupChoiceDisplay[*record.WorkflowSetup]
	}
	if record.HasOpenRouter != nil {
		fields["has_openrouter"] = *record.HasOpenRouter
	}
	if record.LocalHosting != nil {
		fields["local_hosting"] = *record.LocalHosting
	}
	if record.WebsiteHosting != nil {
		fields["website_hosting"] = *record.WebsiteHosting
	}
	if record.DetectedCMS != nil && *record.DetectedCMS != "" {
		fields["detected_cms"] = *record.DetectedCMS
	}

	if record.BusinessSummary != "" {
		fields["company_description"] = record.BusinessSummary
	}
	if record.TeamSize != nil {
		fields["team_size"] = teamSizeDisplay[*record.TeamSize]
	}
	if len(record.Roles) > 0 {
		fields["roles"] = strings.Join(record.Roles, ", ")
	}
	if len(record.AutomationAreas) > 0 {
		fields["automation_areas"] = strings.Join(record.AutomationAreas, ", ")
	}

	if record.BillingEmail != "" {
		fields["Billing_Email"] = record.BillingEmail
	}
	if code := record.AffiliateCodeValue(); code != "" {
		fields["aff_code"] = code
	}

	return fields
}

// CreateRecord creates the remote contact with status "In Progress" and
// returns its ID. A duplicate-email create falls back to looking up the
// existing contact so subsequent saves update it instead.
func (c *VitalsClient) CreateRecord(ctx context.Context, record *types.AnswerRecord) (string, error) {
	fields := contactFields(record)
	fields["onboarding_status"] = statusInProgress

	var result struct {
		CreateContact *struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"createContact"`
	}
	err := c.gql(ctx,
		`mutation createContact($payload: ContactCreateInput) {
			createContact(payload: $payload) { id email }
		}`,
		map[string]any{"payload": fields},
		&result,
	)
	if err == nil && result.CreateContact != nil && result.CreateContact.ID != 0 {
		id := strconv.FormatInt(result.CreateContact.ID, 10)
		c.logger.InfoContext(ctx, "contact created", "record_id", id)
		return id, nil
	}

	// Create failed, most likely a duplicate email. Reuse the existing
	// contact so later comprehensive saves target the right row.
	if record.Email != "" {
		if id, lookupErr := c.findByEmail(ctx, record.Email); lookupErr == nil && id != "" {
			c.logger.InfoContext(ctx, "reusing existing contact", "record_id", id)
			return id, nil
		}
	}

	if err != nil {
		return "", err
	}
	return "", types.NewAppError(types.ErrCodeUpstreamPersistence, "contact create returned no id", nil)
}

// findByEmail resolves an existing contact ID by email address.
func (c *VitalsClient) findByEmail(ctx context.Context, email string) (string, error) {
	// The where clause must be inlined; passing it as a variable makes the
	// server silently ignore it.
	query := fmt.Sprintf(
		`query getContacts {
			getContacts(query: [{ where: { email: %s, _OPERATOR_: eq } }], limit: 1) { id }
		}`,
		strconv.Quote(email),
	)

	var result struct {
		GetContacts []struct {
			ID int64 `json:"id"`
		} `json:"getContacts"`
	}
	if err := c.gql(ctx, query, map[string]any{}, &result); err != nil {
		return "", err
	}
	if len(result.GetContacts) == 0 || result.GetContacts[0].ID == 0 {
		return "", nil
	}
	return strconv.FormatInt(result.GetContacts[0].ID, 10), nil
}

// updateContact sends the given field payload to a single contact, verifying
// the server actually targeted the requested row.
func (c *VitalsClient) updateContact(ctx context.Context, recordID string, fields map[string]any) error {
	numericID, err := strconv.ParseInt(recordID, 10, 64)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "record id is not numeric", err)
	}

	// The where clause must be inlined with _OPERATOR_; a $variable query is
	// silently ignored and the mutation would update every contact.
	query := fmt.Sprintf(
		`mutation updateContact($payload: ContactUpdateInput) {
			updateContact(payload: $payload, query: [{ where: { id: %d, _OPERATOR_: eq } }]) { id }
		}`,
		numericID,
	)

	var result struct {
		UpdateContact *struct {
			ID int64 `json:"id"`
		} `json:"updateContact"`
	}
	if err := c.gql(ctx, query, map[string]any{"payload": fields}, &result); err != nil {
		return err
	}
	if result.UpdateContact == nil {
		return types.NewAppError(types.ErrCodeUpstreamPersistence, "contact update returned no result", nil)
	}
	if result.UpdateContact.ID != numericID {
		return types.NewAppError(
			types.ErrCodeUpstreamPersistence,
			"contact update targeted the wrong record",
			fmt.Errorf("requested %d, server updated %d", numericID, result.UpdateContact.ID),
		)
	}
	return nil
}

// UpdateRecord resends the full record. The completion status is never
// included here: a late-arriving save must not overwrite "Completed".
func (c *VitalsClient) UpdateRecord(ctx context.Context, recordID string, record *types.AnswerRecord) error {
	if recordID == "" {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "update requires a record id", nil)
	}
	return c.updateContact(ctx, recordID, contactFields(record))
}

// MarkComplete performs the final comprehensive save plus the completion
// fields. Invoked only after successful payment or inquiry submission.
func (c *VitalsClient) MarkComplete(ctx context.Context, recordID string, record *types.AnswerRecord) error {
	if recordID == "" {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "mark complete requires a record id", nil)
	}

	fields := contactFields(record)
	fields["onboarding_status"] = statusCompleted
	fields["needs_booking"] = record.NeedsBooking()
	fields["onboarding_completed_at"] = c.nowFn().Unix()

	return c.updateContact(ctx, recordID, fields)
}

// CheckSlugAvailable queries the slug lookup endpoint. A non-empty result set
// means the slug is already claimed.
func (c *VitalsClient) CheckSlugAvailable(ctx context.Context, slug string) (bool, error) {
	u, err := url.Parse(c.slugCheckURL)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalUnexpected, "invalid slug check url", err)
	}
	q := u.Query()
	q.Set("slug", slug)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build slug check request", err)
	}
	req.Header.Set("Api-Key", c.slugCheckKey.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeUpstreamPersistence, "slug check request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, types.NewAppError(
			types.ErrCodeUpstreamPersistence,
			fmt.Sprintf("slug check returned %d", resp.StatusCode),
			nil,
		)
	}

	var result struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, types.NewAppError(types.ErrCodeUpstreamPersistence, "failed to decode slug check response", err)
	}
	return len(result.Data) == 0, nil
}
