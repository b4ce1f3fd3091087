package builtin

import (
	"context"

	"go.uber.org/zap"

	"textflow/internal/extensions"
)

// numPickerBasic picks an unallocated owned phone number for outgoing
// messages, basic rotation. It only acts as a fallback: a number already
// chosen by an earlier manager is left alone.
type numPickerBasic struct {
	phones  PhoneStore
	service string
	log     *zap.Logger
}

func (m *numPickerBasic) Metadata() extensions.Metadata {
	return extensions.Metadata{
		Name:        "numpicker-basic",
		DisplayName: "Basic Number Picker",
		Description: "Picks an owned phone number for sends, basic rotation.",
	}
}

func (m *numPickerBasic) OnMessageSend(ctx context.Context, msg *extensions.MessageContext) (*extensions.MessageOverrides, error) {
	if msg.UserNumber != "" {
		return nil, nil
	}

	number, err := m.phones.PickOwnedPhoneNumber(ctx, msg.Organization.ID, m.service)
	if err != nil {
		return nil, err
	}
	if number == "" {
		m.log.Warn("numpicker-basic found no available number",
			zap.String("service", m.service),
			zap.String("organization_id", msg.Organization.ID.String()))
		return nil, nil
	}

	return &extensions.MessageOverrides{UserNumber: number}, nil
}
