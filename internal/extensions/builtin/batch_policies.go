package builtin

import (
	"context"
	"strings"

	"textflow/internal/extensions"
)

// finishedReplies hands out a new batch only once the texter has no
// contacts awaiting a response.
type finishedReplies struct{}

func (p *finishedReplies) Metadata() extensions.Metadata {
	return extensions.Metadata{
		Name:                   "finished-replies",
		DisplayName:            "Finished Replies",
		Description:            "New batches only after all replies are handled.",
		SupportsCampaignConfig: true,
	}
}

func (p *finishedReplies) DynamicBatchSize(_ context.Context, req extensions.BatchRequest) (int, error) {
	if req.Campaign.Counters.NeedsResponseCount > 0 {
		return 0, nil
	}
	return remainingBatch(req), nil
}

// vettedTexters hands out batches only to texters the organization has
// marked vetted.
type vettedTexters struct{}

func (p *vettedTexters) Metadata() extensions.Metadata {
	return extensions.Metadata{
		Name:                   "vetted-texters",
		DisplayName:            "Vetted Texters",
		Description:            "Only org-vetted texters receive dynamic batches.",
		SupportsCampaignConfig: true,
	}
}

func (p *vettedTexters) DynamicBatchSize(_ context.Context, req extensions.BatchRequest) (int, error) {
	vetted := req.Organization.Feature("VETTED_TEXTERS")
	if vetted == "" || !containsName(vetted, req.Texter) {
		return 0, nil
	}
	return remainingBatch(req), nil
}

// remainingBatch caps a batch at the campaign's batch size without
// exceeding the unassigned remainder.
func remainingBatch(req extensions.BatchRequest) int {
	remaining := req.Campaign.ContactsCount - req.Campaign.Counters.AssignedCount
	if remaining <= 0 {
		return 0
	}
	size := int64(req.Campaign.BatchSize)
	if remaining < size {
		return int(remaining)
	}
	return int(size)
}

func containsName(csv, name string) bool {
	for _, n := range strings.Split(csv, ",") {
		if strings.TrimSpace(n) == name {
			return true
		}
	}
	return false
}
