package api

// PrayerTimesPayload is the decoded form of the prayer_times resource. The
// sync engine caches the raw JSON; this type is for display surfaces (the
// status command) that want a readable summary.
type PrayerTimesPayload struct {
	Date    string            `json:"date"`
	Times   map[string]string `json:"times"`
	Iqamahs map[string]string `json:"iqamahs,omitempty"`
}

// PrayerStatusPayload is the decoded form of the prayer_status resource.
type PrayerStatusPayload struct {
	Current string `json:"current"`
	Next    string `json:"next"`
	NextAt  string `json:"next_at"`
}

// ContentPayload is the decoded form of the content resource: the
// announcements and slides the kiosk rotates through.
type ContentPayload struct {
	Announcements []Announcement `json:"announcements"`
	Slides        []Slide        `json:"slides,omitempty"`
}

// Announcement is one rotating text item.
type Announcement struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Slide is one full-screen image item.
type Slide struct {
	ID       string `json:"id"`
	ImageURL string `json:"image_url"`
	Seconds  int    `json:"seconds,omitempty"`
}

// Event is one calendar entry from the events resource.
type Event struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at,omitempty"`
	Location string `json:"location,omitempty"`
}
