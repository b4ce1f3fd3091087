// Package builtin holds the plugin implementations compiled into this
// deployment. The registry loads them by name from the enabled-list
// configuration.
package builtin

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"textflow/internal/extensions"
)

// PhoneStore supplies owned phone numbers to the number picker.
type PhoneStore interface {
	PickOwnedPhoneNumber(ctx context.Context, orgID uuid.UUID, service string) (string, error)
}

// TagStore persists contact tags for handlers that set them.
type TagStore interface {
	SaveContactTags(ctx context.Context, contactID int64, tags map[string]string) error
}

// Deps are the collaborators handed to built-in plugins at construction.
type Deps struct {
	Phones         PhoneStore
	Tags           TagStore
	DefaultService string
	Log            *zap.Logger
}

// All returns every built-in plugin keyed by capability, ready for
// registry construction.
func All(deps Deps) map[extensions.Capability][]extensions.Plugin {
	return map[extensions.Capability][]extensions.Plugin{
		extensions.ContactLoaderKind: {
			&csvUploadLoader{},
			&fakeDataLoader{},
		},
		extensions.ActionHandlerKind: {
			&testAction{log: deps.Log},
		},
		extensions.MessageHandlerKind: {
			&autoOptOut{tags: deps.Tags, log: deps.Log},
			&outboundUnassign{log: deps.Log},
		},
		extensions.ServiceManagerKind: {
			&numPickerBasic{phones: deps.Phones, service: deps.DefaultService, log: deps.Log},
		},
		extensions.BatchPolicyKind: {
			&finishedReplies{},
			&vettedTexters{},
		},
	}
}
