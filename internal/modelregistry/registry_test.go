package modelregistry

import "testing"

func testDescriptors() []ModelDescriptor {
	return []ModelDescriptor{
		{ID: "m1", DisplayName: "Model One", ProviderTag: "acme", IsChairman: true},
		{ID: "m2", DisplayName: "Model Two", ProviderTag: "acme"},
		{ID: "m3", DisplayName: "Model Three", ProviderTag: "other"},
	}
}

func TestNewValidatesChairman(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for empty descriptor set")
	}

	noChairman := []ModelDescriptor{{ID: "m1", DisplayName: "M1", ProviderTag: "acme"}}
	if _, err := New(noChairman); err == nil {
		t.Fatal("expected error when no chairman is designated")
	}

	twoChairs := []ModelDescriptor{
		{ID: "m1", DisplayName: "M1", ProviderTag: "acme", IsChairman: true},
		{ID: "m2", DisplayName: "M2", ProviderTag: "acme", IsChairman: true},
	}
	if _, err := New(twoChairs); err == nil {
		t.Fatal("expected error when more than one chairman is designated")
	}

	dup := []ModelDescriptor{
		{ID: "m1", DisplayName: "M1", ProviderTag: "acme", IsChairman: true},
		{ID: "m1", DisplayName: "M1 dup", ProviderTag: "acme"},
	}
	if _, err := New(dup); err == nil {
		t.Fatal("expected error for duplicate id")
	}
}

func TestResolveEmptyReturnsAll(t *testing.T) {
	cat, err := New(testDescriptors())
	if err != nil {
		t.Fatal(err)
	}

	resolved, warnings := cat.Resolve(nil)
	if len(resolved) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(resolved))
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestResolveOrdersAndWarnsOnUnknown(t *testing.T) {
	cat, err := New(testDescriptors())
	if err != nil {
		t.Fatal(err)
	}

	resolved, warnings := cat.Resolve([]string{"m3", "does-not-exist", "m1"})
	if len(resolved) != 2 || resolved[0].ID != "m3" || resolved[1].ID != "m1" {
		t.Fatalf("unexpected resolution order: %+v", resolved)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
}

func TestChairmanAndByProvider(t *testing.T) {
	cat, err := New(testDescriptors())
	if err != nil {
		t.Fatal(err)
	}

	if cat.Chairman().ID != "m1" {
		t.Fatalf("expected chairman m1, got %s", cat.Chairman().ID)
	}

	acme := cat.ByProvider("acme")
	if len(acme) != 2 {
		t.Fatalf("expected 2 acme models, got %d", len(acme))
	}
}

func TestVersionStableAcrossEquivalentCatalogs(t *testing.T) {
	a, err := New(testDescriptors())
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(testDescriptors())
	if err != nil {
		t.Fatal(err)
	}
	if a.Version() != b.Version() {
		t.Fatalf("expected stable fingerprint, got %s vs %s", a.Version(), b.Version())
	}
}
