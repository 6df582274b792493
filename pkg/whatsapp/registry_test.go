package whatsapp

import "testing"

func TestRegistryRegisterGetRemove(t *testing.T) {
	registry := NewRegistry()
	client := newFakeClient()

	if _, ok := registry.Get("s1"); ok {
		t.Fatal("expected empty registry miss")
	}

	registry.Register("s1", client)
	got, ok := registry.Get("s1")
	if !ok || got != ChatClient(client) {
		t.Fatal("expected registered client back")
	}
	if registry.Len() != 1 {
		t.Fatalf("Len = %d, want 1", registry.Len())
	}

	// Register is idempotent: overwriting keeps a single entry.
	replacement := newFakeClient()
	registry.Register("s1", replacement)
	if registry.Len() != 1 {
		t.Fatalf("Len after overwrite = %d, want 1", registry.Len())
	}
	got, _ = registry.Get("s1")
	if got != ChatClient(replacement) {
		t.Fatal("overwrite did not replace the handle")
	}

	if !registry.Remove("s1") {
		t.Fatal("Remove reported absent for a present id")
	}
	if registry.Remove("s1") {
		t.Fatal("Remove reported present for an absent id")
	}
}

func TestRegistryRangeAllowsMutation(t *testing.T) {
	registry := NewRegistry()
	registry.Register("a", newFakeClient())
	registry.Register("b", newFakeClient())
	registry.Register("c", newFakeClient())

	visited := 0
	registry.Range(func(id string, _ ChatClient) {
		visited++
		registry.Remove(id)
	})

	if visited != 3 {
		t.Fatalf("visited %d sessions, want 3", visited)
	}
	if registry.Len() != 0 {
		t.Fatalf("Len after removal = %d, want 0", registry.Len())
	}
}

func TestRegistryListIDs(t *testing.T) {
	registry := NewRegistry()
	registry.Register("a", newFakeClient())
	registry.Register("b", newFakeClient())

	ids := registry.ListIDs()
	if len(ids) != 2 {
		t.Fatalf("ListIDs returned %d ids, want 2", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("ListIDs missing entries: %v", ids)
	}
}
