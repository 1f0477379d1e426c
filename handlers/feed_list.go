package handlers

import (
	"encoding/json"
	"net/http"
)

// FeedStatus is one configured feed with the number of postings it has
// produced so far.
type FeedStatus struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Postings int64  `json:"postings"`
}

// HandleGetFeeds lists the configured syndication feed sources with their
// stored posting counts. A count that cannot be read reports as zero rather
// than failing the listing.
func (h *Handler) HandleGetFeeds(w http.ResponseWriter, r *http.Request) {
	feeds := make([]FeedStatus, 0, len(h.Feeds))
	for _, f := range h.Feeds {
		status := FeedStatus{Name: f.Name, URL: f.URL}
		if h.Postings != nil {
			if n, err := h.Postings.CountBySource(r.Context(), f.URL); err == nil {
				status.Postings = n
			} else {
				h.Logger.WithField("feed_url", f.URL).WithField("error", err.Error()).
					Warn("Failed to count postings for feed")
			}
		}
		feeds = append(feeds, status)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"feeds": feeds,
	})
}
