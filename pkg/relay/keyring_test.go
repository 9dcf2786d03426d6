package relay

import (
	"sync"
	"testing"
)

func TestSelectEmptyFieldPassesThrough(t *testing.T) {
	k := NewKeyring()
	if _, ok := k.Select("", true); ok {
		t.Fatal("expected no credential for empty field")
	}
	if _, ok := k.Select("   ", false); ok {
		t.Fatal("expected no credential for blank field")
	}
}

func TestSelectSingleValueUsedDirectly(t *testing.T) {
	k := NewKeyring()
	for i := 0; i < 3; i++ {
		cred, ok := k.Select("only-key", true)
		if !ok || cred != "only-key" {
			t.Fatalf("unexpected selection: %q ok=%v", cred, ok)
		}
	}
}

func TestSelectRoundRobinCyclesFromZero(t *testing.T) {
	k := NewKeyring()
	want := []string{"a", "b", "c", "a", "b", "c", "a"}
	for i, w := range want {
		cred, ok := k.Select("a, b ,c", true)
		if !ok {
			t.Fatalf("selection %d: expected ok", i)
		}
		if cred != w {
			t.Fatalf("selection %d: got %q want %q", i, cred, w)
		}
	}
}

func TestSelectStripsCASuffixForNonChatOnly(t *testing.T) {
	k := NewKeyring()
	if cred, _ := k.Select("abc-ca", true); cred != "abc-ca" {
		t.Fatalf("chat request must keep suffix, got %q", cred)
	}
	if cred, _ := k.Select("abc-ca", false); cred != "abc" {
		t.Fatalf("non-chat request must strip suffix, got %q", cred)
	}
	// Applies to rotated entries too.
	k2 := NewKeyring()
	if cred, _ := k2.Select("x-ca,y", false); cred != "x" {
		t.Fatalf("unexpected first rotation: %q", cred)
	}
	if cred, _ := k2.Select("x-ca,y", false); cred != "y" {
		t.Fatalf("unexpected second rotation: %q", cred)
	}
}

func TestSelectConcurrentFieldsStayFair(t *testing.T) {
	k := NewKeyring()
	const perField = 300
	fields := []string{"a,b,c", "d,e", "f,g,h,i"}

	var wg sync.WaitGroup
	counts := make([]map[string]int, len(fields))
	var mu sync.Mutex
	for i, field := range fields {
		counts[i] = map[string]int{}
		wg.Add(1)
		go func(i int, field string) {
			defer wg.Done()
			for j := 0; j < perField; j++ {
				cred, ok := k.Select(field, true)
				if !ok {
					t.Errorf("field %q: expected ok", field)
					return
				}
				mu.Lock()
				counts[i][cred]++
				mu.Unlock()
			}
		}(i, field)
	}
	wg.Wait()

	for i, field := range fields {
		entries := splitKeyField(field)
		want := perField / len(entries)
		for _, e := range entries {
			got := counts[i][e]
			if got < want-1 || got > want+1 {
				t.Fatalf("field %q entry %q: got %d selections, want %d±1", field, e, got, want)
			}
		}
	}
}
