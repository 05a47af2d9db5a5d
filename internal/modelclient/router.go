package modelclient

import "fmt"

// Router dispatches by provider tag to a concrete Client, replacing the
// "provider dispatch by dict lookup on model id" anti-pattern spec §9 calls
// out: the registry resolves a typed ModelDescriptor carrying a
// provider_tag, and Router turns that tag into the Client implementation
// for that provider (one adapter per provider, not one branch per model
// id).
type Router struct {
	clients map[string]Client
}

// NewRouter builds a Router from a provider-tag-to-Client map.
func NewRouter(clients map[string]Client) *Router {
	cp := make(map[string]Client, len(clients))
	for k, v := range clients {
		cp[k] = v
	}
	return &Router{clients: cp}
}

// For returns the Client registered for providerTag.
func (r *Router) For(providerTag string) (Client, error) {
	c, ok := r.clients[providerTag]
	if !ok {
		return nil, fmt.Errorf("modelclient: no client registered for provider %q", providerTag)
	}
	return c, nil
}
