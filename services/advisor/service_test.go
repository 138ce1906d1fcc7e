package advisor

import (
	"strings"
	"testing"
	"time"

	"streamwise/models"
)

func event(serviceID string) models.UsageEvent {
	return models.UsageEvent{ServiceID: serviceID, Timestamp: time.Now()}
}

func TestSuggestNoSubscriptions(t *testing.T) {
	svc := NewService()

	got := svc.Suggest(nil, nil)
	if !strings.Contains(got.Message, "get started") {
		t.Errorf("expected onboarding message, got %q", got.Message)
	}
	if len(got.UnusedServices) != 0 {
		t.Errorf("expected no unused services, got %v", got.UnusedServices)
	}
}

func TestSuggestAllServicesUsed(t *testing.T) {
	svc := NewService()

	got := svc.Suggest([]string{"netflix", "hulu"}, []models.UsageEvent{event("netflix"), event("hulu"), event("netflix")})
	if !strings.Contains(got.Message, "using all your subscriptions") {
		t.Errorf("expected all-used message, got %q", got.Message)
	}
	if got.UsageCounts["netflix"] != 2 || got.UsageCounts["hulu"] != 1 {
		t.Errorf("unexpected counts %v", got.UsageCounts)
	}
}

func TestSuggestSingleUnusedService(t *testing.T) {
	svc := NewService()

	got := svc.Suggest([]string{"netflix", "max"}, []models.UsageEvent{event("netflix")})
	want := "You subscribe to Max but haven't used it in the last 90 days. Consider pausing it to save money!"
	if got.Message != want {
		t.Errorf("expected %q, got %q", want, got.Message)
	}
	if len(got.UnusedServices) != 1 || got.UnusedServices[0] != "max" {
		t.Errorf("expected unused [max], got %v", got.UnusedServices)
	}
}

func TestSuggestMultipleUnusedServices(t *testing.T) {
	svc := NewService()

	got := svc.Suggest([]string{"netflix", "max", "hulu"}, nil)
	if !strings.Contains(got.Message, "haven't used them") {
		t.Errorf("expected plural phrasing, got %q", got.Message)
	}
	for _, name := range []string{"Netflix", "Max", "Hulu"} {
		if !strings.Contains(got.Message, name) {
			t.Errorf("expected %s in message %q", name, got.Message)
		}
	}
}

func TestSuggestUnknownServiceIDSkippedInMessage(t *testing.T) {
	svc := NewService()

	got := svc.Suggest([]string{"betamax-online"}, nil)
	if strings.Contains(got.Message, "betamax-online") {
		t.Errorf("unknown id must not leak into the message: %q", got.Message)
	}
	if len(got.UnusedServices) != 1 {
		t.Errorf("unknown id still counts as unused, got %v", got.UnusedServices)
	}
}
