package extensions

import (
	"strings"

	"go.uber.org/zap"

	"textflow/internal/config"
	"textflow/internal/metrics"
	"textflow/internal/models"
)

// Hard-coded fallback lists, used when neither scope configuration nor the
// global environment names a capability's plugins.
const (
	defaultBatchPolicies   = "finished-replies,vetted-texters"
	defaultMessageHandlers = "auto-optout,outbound-unassign"
)

// Registry resolves configured plugin name lists to loaded implementations.
// It is built once at startup and never mutated afterwards; it performs no
// I/O of its own.
type Registry struct {
	cfg   *config.Config
	log   *zap.Logger
	table map[Capability]map[string]Plugin
}

// New builds the registry from the compiled-in plugin set. The same name
// may appear under multiple capabilities (a plugin can serve more than one
// kind).
func New(cfg *config.Config, log *zap.Logger, plugins map[Capability][]Plugin) *Registry {
	table := make(map[Capability]map[string]Plugin, len(plugins))
	for kind, list := range plugins {
		byName := make(map[string]Plugin, len(list))
		for _, p := range list {
			byName[p.Metadata().Name] = p
		}
		table[kind] = byName
	}
	return &Registry{cfg: cfg, log: log, table: table}
}

// Lookup returns a single registered plugin by capability and name.
func (r *Registry) Lookup(kind Capability, name string) (Plugin, bool) {
	p, ok := r.table[kind][name]
	return p, ok
}

// resolve maps configured names to loaded plugins, best-effort per name: a
// name that does not resolve is logged and skipped, never aborting the
// rest. Misses are not cached anywhere; a later resolution retries the
// same name against the same table.
func (r *Registry) resolve(kind Capability, names []string) []Plugin {
	var out []Plugin
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		p, ok := r.table[kind][name]
		if !ok {
			metrics.ExtensionLoadFailures.WithLabelValues(string(kind)).Inc()
			r.log.Error("failed to load extension",
				zap.String("capability", string(kind)), zap.String("name", name))
			continue
		}
		out = append(out, p)
	}
	return out
}

// scopedList resolves the configured name list for a capability:
// campaign-scoped feature, then organization-scoped feature, then the
// global default. Returns the list and whether a campaign-scoped setting
// supplied it.
func (r *Registry) scopedList(kind Capability, org *models.Organization, campaign *models.Campaign, globalDefault string) (string, bool) {
	if campaign != nil {
		if v := campaign.Feature(string(kind)); v != "" {
			return v, true
		}
	}
	if org != nil {
		if v := org.Feature(string(kind)); v != "" {
			return v, false
		}
	}
	return globalDefault, false
}

// ContactLoaders returns the enabled contact loaders for an organization.
func (r *Registry) ContactLoaders(org *models.Organization) []Plugin {
	list, _ := r.scopedList(ContactLoaderKind, org, nil, r.cfg.ContactLoaders)
	return r.resolve(ContactLoaderKind, strings.Split(list, ","))
}

// ActionHandlers returns the enabled action handlers for an organization.
func (r *Registry) ActionHandlers(org *models.Organization) []Plugin {
	list, _ := r.scopedList(ActionHandlerKind, org, nil, r.cfg.ActionHandlers)
	return r.resolve(ActionHandlerKind, strings.Split(list, ","))
}

// TagUpdateHandlers returns the enabled action handlers that react to tag
// changes.
func (r *Registry) TagUpdateHandlers(org *models.Organization) []Plugin {
	var out []Plugin
	for _, p := range r.ActionHandlers(org) {
		if _, ok := p.(TagUpdateHandler); ok {
			out = append(out, p)
		}
	}
	return out
}

// MessageHandlers returns the enabled message handlers. The built-in
// default list applies only when the key is entirely unset; an explicitly
// empty setting disables all handlers.
func (r *Registry) MessageHandlers(org *models.Organization) []Plugin {
	global := defaultMessageHandlers
	if r.cfg.MessageHandlers != nil {
		global = *r.cfg.MessageHandlers
	}
	list, _ := r.scopedList(MessageHandlerKind, org, nil, global)
	if list == "" {
		return nil
	}
	return r.resolve(MessageHandlerKind, strings.Split(list, ","))
}

// ServiceManagers returns the enabled service managers for an organization.
func (r *Registry) ServiceManagers(org *models.Organization) []Plugin {
	list, _ := r.scopedList(ServiceManagerKind, org, nil, r.cfg.ServiceManagers)
	if list == "" {
		return nil
	}
	return r.resolve(ServiceManagerKind, strings.Split(list, ","))
}

// BatchPolicies returns the enabled dynamic-assignment batch policies.
// Without a campaign-scoped setting only the first configured policy is
// retained: stacking policies is opt-in per campaign because combined
// behaviors are only ever tested individually.
func (r *Registry) BatchPolicies(org *models.Organization, campaign *models.Campaign) []Plugin {
	global := r.cfg.BatchPolicies
	if global == "" {
		global = defaultBatchPolicies
	}
	list, campaignScoped := r.scopedList(BatchPolicyKind, org, campaign, global)

	names := strings.Split(list, ",")
	if !campaignScoped && len(names) > 1 {
		names = names[:1]
	}
	return r.resolve(BatchPolicyKind, names)
}
