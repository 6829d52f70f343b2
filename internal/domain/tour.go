package domain

import "time"

// TourQuality buckets resolved landmarks by confidence:
// >=0.8 high, >=0.5 medium, else low.
type TourQuality struct {
	HighConfidence   int
	MediumConfidence int
	LowConfidence    int
}

// Tour is the complete resolved set for one destination request.
type Tour struct {
	ID            string
	Destination   string
	Landmarks     []ResolvedLandmark
	Quality       TourQuality
	FallbacksUsed []string // de-duplicated, in first-use order
	ProcessingMs  int64
	CreatedAt     time.Time
}

func (q TourQuality) Total() int {
	return q.HighConfidence + q.MediumConfidence + q.LowConfidence
}

// Bucket classifies a confidence score into the quality counters.
func (q *TourQuality) Bucket(confidence float64) {
	switch {
	case confidence >= 0.8:
		q.HighConfidence++
	case confidence >= 0.5:
		q.MediumConfidence++
	default:
		q.LowConfidence++
	}
}
