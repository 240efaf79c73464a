package fatptr

import (
	"errors"
	"testing"
)

func TestPolicy_DefaultIsValid(t *testing.T) {
	p := DefaultPolicy()
	if err := p.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
	if !p.HasStorage(StorageOwned) || p.HasStorage(StorageBorrowed) {
		t.Errorf("default storage = %v", p.Storage)
	}
	if !p.HasDispatch(DispatchIndirect) || p.HasDispatch(DispatchEmbedded) {
		t.Errorf("default dispatch = %v", p.Dispatch)
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name        string
		policy      Policy
		unsupported bool
		wantErr     bool
	}{
		{"owned+borrowed, both layouts", Policy{
			Storage:  []Storage{StorageOwned, StorageBorrowed},
			Dispatch: []Dispatch{DispatchIndirect, DispatchEmbedded},
		}, false, false},
		{"small buffer", Policy{
			Storage:  []Storage{StorageSmallBuffer},
			Dispatch: []Dispatch{DispatchIndirect},
		}, true, true},
		{"shared", Policy{
			Storage:  []Storage{StorageShared},
			Dispatch: []Dispatch{DispatchIndirect},
		}, true, true},
		{"local", Policy{
			Storage:  []Storage{StorageLocal},
			Dispatch: []Dispatch{DispatchIndirect},
		}, true, true},
		{"explicit destruction", Policy{
			Storage:     []Storage{StorageOwned},
			Destruction: DestructionExplicit,
			Dispatch:    []Dispatch{DispatchIndirect},
		}, true, true},
		{"no storage", Policy{Dispatch: []Dispatch{DispatchIndirect}}, true, true},
		{"no dispatch", Policy{Storage: []Storage{StorageOwned}}, true, true},
		{"duplicate storage", Policy{
			Storage:  []Storage{StorageOwned, StorageOwned},
			Dispatch: []Dispatch{DispatchIndirect},
		}, false, true},
		{"duplicate dispatch", Policy{
			Storage:  []Storage{StorageOwned},
			Dispatch: []Dispatch{DispatchEmbedded, DispatchEmbedded},
		}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, ErrUnsupportedPolicy); got != tt.unsupported {
				t.Errorf("errors.Is(ErrUnsupportedPolicy) = %v, want %v (err %v)", got, tt.unsupported, err)
			}
		})
	}
}

func TestPolicy_TextRoundTrip(t *testing.T) {
	var s Storage
	if err := s.UnmarshalText([]byte(" Borrowed ")); err != nil || s != StorageBorrowed {
		t.Errorf("UnmarshalText(Borrowed) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("small-buffer")); err != nil || s != StorageSmallBuffer {
		t.Errorf("UnmarshalText(small-buffer) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("stack")); err == nil {
		t.Error("expected error for unknown storage")
	}

	var d Dispatch
	if err := d.UnmarshalText([]byte("embedded")); err != nil || d != DispatchEmbedded {
		t.Errorf("UnmarshalText(embedded) = %v, %v", d, err)
	}
	text, _ := d.MarshalText()
	if string(text) != "embedded" {
		t.Errorf("MarshalText = %q", text)
	}

	var ds Destruction
	if err := ds.UnmarshalText([]byte("explicit")); err != nil || ds != DestructionExplicit {
		t.Errorf("UnmarshalText(explicit) = %v, %v", ds, err)
	}
	if got := Storage(42).String(); got != "unknown(42)" {
		t.Errorf("String of unknown storage = %q", got)
	}
}
