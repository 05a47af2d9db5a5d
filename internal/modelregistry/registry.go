// Package modelregistry enumerates the models a council orchestration can draw
// on and resolves caller-supplied selections against that catalog.
//
// The shape is grounded on the teacher's mode catalog
// (internal/ensemble.ModeCatalog in the retrieval pack's greenforestpath-ntm
// repo): validate-once-at-construction, then serve immutable lookups by id,
// by provider, and a full listing, generalized from "reasoning modes" to
// "model descriptors".
package modelregistry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// ModelDescriptor is the unit the registry manages. See spec §3.
type ModelDescriptor struct {
	ID          string `json:"id" toml:"id"`
	DisplayName string `json:"display_name" toml:"display_name"`
	ProviderTag string `json:"provider_tag" toml:"provider_tag"`
	IsChairman  bool   `json:"is_chairman" toml:"chairman"`

	// BaseURL and APIKeyEnv describe how to reach this model's provider over
	// HTTP. They are consumed by internal/config's BuildRouter when building one
	// modelclient.HTTPClient per distinct provider_tag; the registry itself
	// never dials out, it only carries the addressing data.
	BaseURL   string `json:"base_url,omitempty" toml:"base_url"`
	APIKeyEnv string `json:"api_key_env,omitempty" toml:"api_key_env"`
}

// Validate checks the fields required for a descriptor to be usable.
func (m ModelDescriptor) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("modelregistry: descriptor id is required")
	}
	if m.DisplayName == "" {
		return fmt.Errorf("modelregistry: descriptor %q missing display_name", m.ID)
	}
	if m.ProviderTag == "" {
		return fmt.Errorf("modelregistry: descriptor %q missing provider_tag", m.ID)
	}
	return nil
}

// Catalog is an immutable, validated set of ModelDescriptors with exactly one
// chairman. Build a new Catalog (via New) whenever the underlying
// configuration changes; existing Catalog values are never mutated, so a
// component that already resolved against one is unaffected by a later
// reload (see internal/config's hot-reload of the models table).
type Catalog struct {
	descriptors []ModelDescriptor
	byID        map[string]*ModelDescriptor
	byProvider  map[string][]*ModelDescriptor
	chairman    *ModelDescriptor
	version     string
}

// New builds a Catalog from descriptors. It returns an error if any
// descriptor is invalid, if ids repeat, or if the chairman count is not
// exactly one.
func New(descriptors []ModelDescriptor) (*Catalog, error) {
	c := &Catalog{
		descriptors: make([]ModelDescriptor, 0, len(descriptors)),
		byID:        make(map[string]*ModelDescriptor, len(descriptors)),
		byProvider:  make(map[string][]*ModelDescriptor),
	}

	for i := range descriptors {
		d := descriptors[i]
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, exists := c.byID[d.ID]; exists {
			return nil, fmt.Errorf("modelregistry: duplicate model id %q", d.ID)
		}
		c.descriptors = append(c.descriptors, d)
		ptr := &c.descriptors[len(c.descriptors)-1]
		c.byID[d.ID] = ptr
		c.byProvider[d.ProviderTag] = append(c.byProvider[d.ProviderTag], ptr)
		if d.IsChairman {
			if c.chairman != nil {
				return nil, fmt.Errorf("modelregistry: more than one chairman (%q and %q)", c.chairman.ID, d.ID)
			}
			c.chairman = ptr
		}
	}

	if len(c.descriptors) == 0 {
		return nil, fmt.Errorf("modelregistry: at least one model is required")
	}
	if c.chairman == nil {
		return nil, fmt.Errorf("modelregistry: no chairman designated")
	}

	c.version = fingerprint(c.descriptors)
	return c, nil
}

// fingerprint produces a short, deterministic id for a descriptor set so
// callers (e.g. the HTTP introspection endpoint) can tell whether the
// registry changed across a hot-reload without diffing the full list.
func fingerprint(descriptors []ModelDescriptor) string {
	sorted := make([]ModelDescriptor, len(descriptors))
	copy(sorted, descriptors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	h := sha256.New()
	for _, d := range sorted {
		fmt.Fprintf(h, "%s|%s|%s|%v\n", d.ID, d.DisplayName, d.ProviderTag, d.IsChairman)
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// List returns every descriptor in the catalog, in the order supplied to New.
func (c *Catalog) List() []ModelDescriptor {
	out := make([]ModelDescriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// ByProvider returns every descriptor with the given provider tag.
func (c *Catalog) ByProvider(tag string) []ModelDescriptor {
	ptrs := c.byProvider[tag]
	out := make([]ModelDescriptor, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

// Get returns the descriptor for id, or false if it is unknown.
func (c *Catalog) Get(id string) (ModelDescriptor, bool) {
	p, ok := c.byID[id]
	if !ok {
		return ModelDescriptor{}, false
	}
	return *p, true
}

// Chairman returns the single designated chairman descriptor.
func (c *Catalog) Chairman() ModelDescriptor {
	return *c.chairman
}

// Version returns a fingerprint of the current descriptor set.
func (c *Catalog) Version() string {
	return c.version
}

// Resolve implements ModelRegistry.resolve from spec §4.1: if ids is empty
// resolve returns every descriptor; otherwise it returns the requested
// subset in request order, dropping unknown ids (reported via the returned
// warnings slice, never fatal).
func (c *Catalog) Resolve(ids []string) (resolved []ModelDescriptor, warnings []string) {
	if len(ids) == 0 {
		return c.List(), nil
	}

	resolved = make([]ModelDescriptor, 0, len(ids))
	for _, id := range ids {
		d, ok := c.Get(id)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown model id %q ignored", id))
			continue
		}
		resolved = append(resolved, d)
	}
	return resolved, warnings
}
