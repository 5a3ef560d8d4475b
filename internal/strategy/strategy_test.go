package strategy

import (
	"errors"
	"testing"

	"tradingcase/internal/domain"
	"tradingcase/internal/indicator"
)

// stubStrategy is a minimal Strategy implementation used in registry tests.
type stubStrategy struct {
	name string
}

func (s *stubStrategy) Name() string   { return s.name }
func (s *stubStrategy) Describe() Info { return Info{Name: s.name, Label: s.name} }
func (s *stubStrategy) Decide(_ domain.Bar, _ indicator.Signal, _ State) Decision {
	return Hold
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	s := &stubStrategy{name: "test-strategy"}

	r.Register(s)

	got, ok := r.Get("test-strategy")
	if !ok {
		t.Fatal("Get returned false for registered strategy")
	}
	if got.Name() != "test-strategy" {
		t.Errorf("Get returned strategy with Name() = %q, want %q", got.Name(), "test-strategy")
	}
}

func TestRegistryGet_NotFound(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Error("Get returned true for unregistered strategy")
	}
}

func TestRegistryLookup_Unknown(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubStrategy{name: "alpha"})

	_, err := r.Lookup("nonexistent")
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("Lookup error = %v, want ErrInvalidConfiguration", err)
	}
	if _, err := r.Lookup("alpha"); err != nil {
		t.Errorf("Lookup(alpha) unexpected error: %v", err)
	}
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubStrategy{name: "beta"})
	r.Register(&stubStrategy{name: "alpha"})

	names := r.List()
	if len(names) != 2 {
		t.Fatalf("List returned %d names, want 2", len(names))
	}
	// List returns sorted names.
	if names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List returned %v, want [alpha beta]", names)
	}

	infos := r.Infos()
	if len(infos) != 2 || infos[0].Name != "alpha" {
		t.Errorf("Infos returned %+v, want alpha first", infos)
	}
}

func TestDecisionString(t *testing.T) {
	for d, want := range map[Decision]string{Hold: "hold", Buy: "buy", Sell: "sell"} {
		if got := d.String(); got != want {
			t.Errorf("Decision(%d).String() = %q, want %q", int(d), got, want)
		}
	}
}
