package builtin

import (
	"context"

	"go.uber.org/zap"

	"textflow/internal/extensions"
	"textflow/internal/models"
)

// testAction is a reference action handler: it logs actions and tag
// updates, and serves static client choice data. Useful for verifying
// registry and dispatch wiring end to end.
type testAction struct {
	log *zap.Logger
}

func (a *testAction) Metadata() extensions.Metadata {
	return extensions.Metadata{
		Name:              "test-action",
		DisplayName:       "Test Action",
		Description:       "Logs processed actions; no external effects.",
		SupportsOrgConfig: true,
	}
}

func (a *testAction) Available(_ context.Context, _ *models.Organization) (extensions.AvailabilityResult, error) {
	return extensions.AvailabilityResult{Result: true, ExpiresSeconds: 86400}, nil
}

func (a *testAction) GetClientChoiceData(_ context.Context, _ *models.Organization) (extensions.ClientChoiceData, error) {
	return extensions.ClientChoiceData{
		Data:           `[{"name":"test answer","details":"fake"}]`,
		ExpiresSeconds: 300,
	}, nil
}

func (a *testAction) ProcessAction(_ context.Context, req extensions.ActionRequest) error {
	a.log.Info("test-action processed action",
		zap.String("action", req.ActionName),
		zap.Int64("contact_id", req.Contact.ID),
		zap.String("campaign_id", req.Campaign.ID.String()))
	return nil
}

func (a *testAction) OnTagUpdate(_ context.Context, update extensions.TagUpdate) error {
	a.log.Info("test-action observed tag update",
		zap.Int64("contact_id", update.ContactID),
		zap.Int("tags", len(update.Tags)),
		zap.String("texter", update.TexterName))
	return nil
}
