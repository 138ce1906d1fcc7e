package models

// StreamingService is one entry of the static service catalog shown on the
// profile screen. Color is the accent color the display client renders the
// service with.
type StreamingService struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// StreamingServices is the catalog of services a user can toggle a
// subscription for. IDs double as the service identifiers recorded in
// usage events.
var StreamingServices = []StreamingService{
	{ID: "netflix", Name: "Netflix", Color: "#DC2626"},
	{ID: "max", Name: "Max", Color: "#4338CA"},
	{ID: "disney+", Name: "Disney+", Color: "#2563EB"},
	{ID: "hulu", Name: "Hulu", Color: "#16A34A"},
	{ID: "prime", Name: "Prime Video", Color: "#0EA5E9"},
	{ID: "apple+", Name: "Apple TV+", Color: "#1F2937"},
	{ID: "peacock", Name: "Peacock", Color: "#FBBF24"},
}
