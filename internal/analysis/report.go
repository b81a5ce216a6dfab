package analysis

import "slices"

// Detail records the occurrences of one keyword in one video.
type Detail struct {
	Title    string `json:"title"`
	VideoRef string `json:"url"`
	Count    int    `json:"count"`
}

// Report aggregates keyword occurrences across the analysed videos.
type Report struct {
	TotalVideos      int                 `json:"total_videos"`
	TotalOccurrences int                 `json:"total_occurrences"`
	Details          map[string][]Detail `json:"details"`
	// Keywords lists the keys of Details in first-appearance order.
	Keywords []string `json:"-"`
	// Processed counts videos handled before the run ended.
	Processed int  `json:"-"`
	Stopped   bool `json:"-"`
	// CacheHits counts videos served from the transcription cache.
	CacheHits int `json:"-"`
}

func newReport(total int, labels []string) Report {
	r := Report{
		TotalVideos: total,
		Details:     make(map[string][]Detail, len(labels)),
	}
	for _, label := range labels {
		if label == "" {
			continue
		}
		if _, seen := r.Details[label]; seen {
			continue
		}
		r.Details[label] = []Detail{}
		r.Keywords = append(r.Keywords, label)
	}
	return r
}

func (r *Report) add(title, videoRef string, scores map[string]int) {
	for _, label := range r.Keywords {
		count := scores[label]
		if count <= 0 {
			continue
		}
		r.Details[label] = append(r.Details[label], Detail{Title: title, VideoRef: videoRef, Count: count})
		r.TotalOccurrences += count
	}
}

// Occurrences returns the total count per keyword in first-appearance order.
func (r Report) Occurrences() []KeywordTotal {
	out := make([]KeywordTotal, 0, len(r.Keywords))
	for _, label := range r.Keywords {
		total := 0
		for _, d := range r.Details[label] {
			total += d.Count
		}
		out = append(out, KeywordTotal{Keyword: label, Count: total, Videos: len(r.Details[label])})
	}
	return out
}

// KeywordTotal summarizes one keyword across all videos.
type KeywordTotal struct {
	Keyword string
	Count   int
	Videos  int
}

// Matched reports whether any keyword was found.
func (r Report) Matched() bool {
	return slices.ContainsFunc(r.Keywords, func(label string) bool { return len(r.Details[label]) > 0 })
}
