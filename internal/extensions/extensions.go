// Package extensions implements the capability registry: the configured,
// per-scope selection of plugin implementations for contact loading, action
// handling, message hooks, service management and dynamic-assignment batch
// policies.
package extensions

import (
	"context"

	"textflow/internal/db"
	"textflow/internal/models"
)

// Capability identifies a plugin kind.
type Capability string

// Capability kinds and the feature/env keys that configure them.
const (
	ContactLoaderKind  Capability = "CONTACT_LOADERS"
	ActionHandlerKind  Capability = "ACTION_HANDLERS"
	MessageHandlerKind Capability = "MESSAGE_HANDLERS"
	ServiceManagerKind Capability = "SERVICE_MANAGERS"
	BatchPolicyKind    Capability = "DYNAMICASSIGNMENT_BATCHES"
)

// Metadata describes a plugin to operators and configuration UIs.
type Metadata struct {
	Name                   string `json:"name"`
	DisplayName            string `json:"display_name"`
	Description            string `json:"description"`
	CanSpendMoney          bool   `json:"can_spend_money"`
	SupportsOrgConfig      bool   `json:"supports_org_config"`
	SupportsCampaignConfig bool   `json:"supports_campaign_config"`
}

// Plugin is the surface every extension must expose. Everything else is
// optional: callers probe for the narrower interfaces below and treat a
// missing one as "feature not supported by this plugin", never as an error.
type Plugin interface {
	Metadata() Metadata
}

// AvailabilityResult reports whether a plugin is usable for an organization
// and how long that answer may be cached.
type AvailabilityResult struct {
	Result         bool `json:"result"`
	ExpiresSeconds int  `json:"expires_seconds"`
}

// AvailabilityChecker is implemented by plugins whose usability depends on
// per-organization state (credentials, remote configuration).
type AvailabilityChecker interface {
	Available(ctx context.Context, org *models.Organization) (AvailabilityResult, error)
}

// ClientChoiceData carries plugin-provided choice data for configuration
// UIs, with its own cache-expiry hint.
type ClientChoiceData struct {
	Data           string `json:"data"`
	ExpiresSeconds int    `json:"expires_seconds"`
}

// ClientChoiceDataProvider is implemented by plugins that surface remote
// choice data to the product's forms.
type ClientChoiceDataProvider interface {
	GetClientChoiceData(ctx context.Context, org *models.Organization) (ClientChoiceData, error)
}

// ActionRequest is a contact answer routed to an action handler.
type ActionRequest struct {
	ActionName   string
	ActionData   string
	Contact      *db.CampaignContact
	Campaign     *models.Campaign
	Organization *models.Organization
}

// ActionProcessor is implemented by action handlers that react to contact
// answers.
type ActionProcessor interface {
	ProcessAction(ctx context.Context, req ActionRequest) error
}

// TagUpdate describes a tag change on a contact.
type TagUpdate struct {
	ContactID    int64
	Tags         map[string]string
	Campaign     *models.Campaign
	Organization *models.Organization
	TexterName   string
}

// TagUpdateHandler is implemented by action handlers that want to hear
// about tag changes. Handlers run as dispatched tasks on a best-effort
// basis; a failing handler never fails the mutation that triggered it.
type TagUpdateHandler interface {
	OnTagUpdate(ctx context.Context, update TagUpdate) error
}

// MessageContext is the send-time state offered to service-manager hooks.
type MessageContext struct {
	ContactID    int64
	UserNumber   string
	Campaign     *models.Campaign
	Organization *models.Organization
}

// MessageOverrides are send parameters a service manager may set. A nil
// return means the manager left the message alone.
type MessageOverrides struct {
	UserNumber string
}

// MessageSendHook is implemented by service managers that intervene at
// message send time (for example to pick a sending number).
type MessageSendHook interface {
	OnMessageSend(ctx context.Context, msg *MessageContext) (*MessageOverrides, error)
}

// InboundMessage is a received contact reply as seen by message handlers.
// Vendor delivery mechanics live outside this subsystem; handlers only see
// the normalized text.
type InboundMessage struct {
	ContactID    int64
	Text         string
	Campaign     *models.Campaign
	Organization *models.Organization
}

// InboundMessageHook is implemented by message handlers that react to
// received replies (for example auto-optout).
type InboundMessageHook interface {
	OnMessageReceive(ctx context.Context, msg *InboundMessage) error
}

// BatchRequest asks a batch policy whether a texter may take another batch.
type BatchRequest struct {
	Texter       string
	Campaign     *models.CampaignAggregate
	Organization *models.Organization
}

// BatchSizer is implemented by dynamic-assignment batch policies. The
// returned count is how many more contacts the texter may be handed; zero
// means the policy declines.
type BatchSizer interface {
	DynamicBatchSize(ctx context.Context, req BatchRequest) (int, error)
}
