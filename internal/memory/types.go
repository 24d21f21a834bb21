package memory

import "time"

// Kind routes a record to its partition.
type Kind string

const (
	KindEpisodic   Kind = "episodic"
	KindSemantic   Kind = "semantic"
	KindProcedural Kind = "procedural"
	KindGeneral    Kind = "general"
)

// Record is a single memory. Episodic records are time-ordered and
// capacity-bounded; semantic records are keyed by Concept and merge on
// repeated writes; procedural records group by Action with a running
// success rate.
type Record struct {
	ID              string    `json:"id"`
	Kind            Kind      `json:"kind"`
	OwnerID         string    `json:"owner_id"`
	Content         string    `json:"content"`
	Features        []string  `json:"features"`
	Concept         string    `json:"concept,omitempty"`
	Associations    []string  `json:"associations,omitempty"`
	Action          string    `json:"action,omitempty"`
	Attempts        int       `json:"attempts,omitempty"`
	Successes       int       `json:"successes,omitempty"`
	Strength        float64   `json:"strength,omitempty"`
	Importance      float64   `json:"importance"`
	CreatedAt       time.Time `json:"created_at"`
	RetrievalCount  int       `json:"retrieval_count"`
	LastRetrievedAt time.Time `json:"last_retrieved_at"`
}

// SuccessRate returns the running success rate of a procedural record.
func (r *Record) SuccessRate() float64 {
	if r.Attempts == 0 {
		return 0
	}
	return float64(r.Successes) / float64(r.Attempts)
}

// Query selects records by owner and feature overlap.
type Query struct {
	OwnerID  string   `json:"owner_id,omitempty"`
	Features []string `json:"features,omitempty"`
	Kind     Kind     `json:"kind,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
