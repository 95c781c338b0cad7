package model_test

import (
	"errors"
	"testing"

	"jobmate/matching-service/internal/model"
)

// ── ParseInteractionType ───────────────────────────────────────────────────

func TestParseInteractionType_ValidValues(t *testing.T) {
	valid := []string{"viewed", "liked", "disliked", "saved", "applied", "dismissed"}
	for _, s := range valid {
		got, err := model.ParseInteractionType(s)
		if err != nil {
			t.Errorf("ParseInteractionType(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseInteractionType(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseInteractionType_Rejected(t *testing.T) {
	invalid := []string{"", "LIKED", " liked", "liked ", "starred", "hired"}
	for _, s := range invalid {
		_, err := model.ParseInteractionType(s)
		if err == nil {
			t.Errorf("ParseInteractionType(%q) expected error, got nil", s)
			continue
		}
		if !errors.Is(err, model.ErrInvalidInteractionType) {
			t.Errorf("ParseInteractionType(%q) error %v does not wrap ErrInvalidInteractionType", s, err)
		}
	}
}

// ── Signal polarity ────────────────────────────────────────────────────────

func TestInteractionPolarity(t *testing.T) {
	cases := []struct {
		typ      model.InteractionType
		positive bool
		negative bool
	}{
		{model.InteractionViewed, false, false},
		{model.InteractionLiked, true, false},
		{model.InteractionSaved, true, false},
		{model.InteractionApplied, true, false},
		{model.InteractionDisliked, false, true},
		{model.InteractionDismissed, false, true},
	}
	for _, c := range cases {
		if c.typ.IsPositive() != c.positive {
			t.Errorf("%s.IsPositive() = %v, want %v", c.typ, !c.positive, c.positive)
		}
		if c.typ.IsNegative() != c.negative {
			t.Errorf("%s.IsNegative() = %v, want %v", c.typ, !c.negative, c.negative)
		}
	}
}

func TestParseRemotePolicy(t *testing.T) {
	cases := map[string]model.RemotePolicy{
		"remote":   model.RemoteRemote,
		" Hybrid ": model.RemoteHybrid,
		"ONSITE":   model.RemoteOnsite,
		"any":      model.RemoteAny,
		"":         model.RemoteUnspecified,
		"on-site":  model.RemoteUnspecified,
	}
	for in, want := range cases {
		if got := model.ParseRemotePolicy(in); got != want {
			t.Errorf("ParseRemotePolicy(%q) = %q, want %q", in, got, want)
		}
	}
}
