package builtin

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"textflow/internal/extensions"
)

// Reply phrases treated as an opt-out request.
var optOutPhrases = []string{"stop", "unsubscribe", "stop all", "stopall", "quit", "cancel", "end"}

// autoOptOut tags contacts whose reply is an opt-out phrase so the rest of
// the product stops texting them.
type autoOptOut struct {
	tags TagStore
	log  *zap.Logger
}

func (h *autoOptOut) Metadata() extensions.Metadata {
	return extensions.Metadata{
		Name:              "auto-optout",
		DisplayName:       "Auto Opt-Out",
		Description:       "Tags contacts whose reply matches an opt-out phrase.",
		SupportsOrgConfig: true,
	}
}

func (h *autoOptOut) OnMessageReceive(ctx context.Context, msg *extensions.InboundMessage) error {
	text := strings.ToLower(strings.TrimSpace(msg.Text))
	matched := false
	for _, phrase := range optOutPhrases {
		if text == phrase {
			matched = true
			break
		}
	}
	if !matched {
		return nil
	}

	h.log.Info("auto-optout matched reply",
		zap.Int64("contact_id", msg.ContactID),
		zap.String("campaign_id", msg.Campaign.ID.String()))
	return h.tags.SaveContactTags(ctx, msg.ContactID, map[string]string{"opted_out": "true"})
}

// outboundUnassign logs sends so operators can trace unassignment flows.
// The actual unassignment runs in the assignment subsystem; this handler is
// the hook point.
type outboundUnassign struct {
	log *zap.Logger
}

func (h *outboundUnassign) Metadata() extensions.Metadata {
	return extensions.Metadata{
		Name:        "outbound-unassign",
		DisplayName: "Outbound Unassign",
		Description: "Releases a contact's assignment after the first outbound send.",
	}
}

func (h *outboundUnassign) OnMessageSend(_ context.Context, msg *extensions.MessageContext) (*extensions.MessageOverrides, error) {
	h.log.Debug("outbound-unassign observed send",
		zap.Int64("contact_id", msg.ContactID),
		zap.String("campaign_id", msg.Campaign.ID.String()))
	return nil, nil
}
