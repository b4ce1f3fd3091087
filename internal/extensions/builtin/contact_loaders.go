package builtin

import (
	"context"

	"textflow/internal/extensions"
	"textflow/internal/models"
)

// csvUploadLoader is the standard upload-based contact loader. Parsing and
// ingest run in the surrounding product; this subsystem only needs the
// loader to be selectable and always available.
type csvUploadLoader struct{}

func (l *csvUploadLoader) Metadata() extensions.Metadata {
	return extensions.Metadata{
		Name:                   "csv-upload",
		DisplayName:            "CSV Upload",
		Description:            "Upload contacts from a CSV file.",
		SupportsCampaignConfig: true,
	}
}

func (l *csvUploadLoader) Available(_ context.Context, _ *models.Organization) (extensions.AvailabilityResult, error) {
	return extensions.AvailabilityResult{Result: true, ExpiresSeconds: 86400}, nil
}

// fakeDataLoader generates test contacts. Development and load-testing
// deployments only.
type fakeDataLoader struct{}

func (l *fakeDataLoader) Metadata() extensions.Metadata {
	return extensions.Metadata{
		Name:                   "test-fakedata",
		DisplayName:            "Test Fake Data",
		Description:            "Generates fake contacts for testing.",
		SupportsCampaignConfig: true,
	}
}

func (l *fakeDataLoader) Available(_ context.Context, org *models.Organization) (extensions.AvailabilityResult, error) {
	// Only available when the org explicitly opts in; fake contacts in a
	// production org would be texted.
	enabled := org.Feature("ALLOW_FAKE_DATA") == "true"
	return extensions.AvailabilityResult{Result: enabled, ExpiresSeconds: 600}, nil
}
