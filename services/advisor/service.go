// Package advisor derives subscription advice from the user's service set
// and recent usage history.
package advisor

import (
	"strings"

	"streamwise/models"
)

// Suggestion is the advisory output for one user.
type Suggestion struct {
	Message        string         `json:"message"`
	UnusedServices []string       `json:"unusedServices"`
	UsageCounts    map[string]int `json:"usageCounts"`
}

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Suggest compares the subscribed set against the services actually opened
// inside the usage window and recommends which to pause.
func (s *Service) Suggest(subscriptions []string, usage []models.UsageEvent) Suggestion {
	counts := make(map[string]int)
	for _, event := range usage {
		counts[event.ServiceID]++
	}

	if len(subscriptions) == 0 {
		return Suggestion{
			Message:        "You haven't selected any subscriptions. Toggle the services you pay for to get started!",
			UnusedServices: []string{},
			UsageCounts:    counts,
		}
	}

	var unusedIDs []string
	for _, id := range subscriptions {
		if counts[id] == 0 {
			unusedIDs = append(unusedIDs, id)
		}
	}
	if len(unusedIDs) == 0 {
		return Suggestion{
			Message:        "You're using all your subscriptions. Keep up the smart streaming!",
			UnusedServices: []string{},
			UsageCounts:    counts,
		}
	}

	// Ids without a catalog entry carry no display name and are skipped in
	// the message.
	var names []string
	for _, id := range unusedIDs {
		for _, svc := range models.StreamingServices {
			if svc.ID == id {
				names = append(names, svc.Name)
				break
			}
		}
	}

	var message string
	switch len(names) {
	case 0:
		message = "You have subscriptions you haven't used in the last 90 days. Consider pausing them to save money!"
	case 1:
		message = "You subscribe to " + names[0] + " but haven't used it in the last 90 days. Consider pausing it to save money!"
	default:
		message = "You subscribe to " + strings.Join(names, ", ") + " but haven't used them in the last 90 days. Consider pausing them to save money!"
	}

	return Suggestion{
		Message:        message,
		UnusedServices: unusedIDs,
		UsageCounts:    counts,
	}
}
