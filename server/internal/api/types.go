package api

const (
	statusSuccess = "success"
	statusError   = "error"
)

// dataResponse is the {status, data} envelope.
type dataResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

// totalResponse is the {status, total} envelope used by totals and delta.
type totalResponse struct {
	Status string             `json:"status"`
	Total  map[string]float64 `json:"total"`
}

// valueResponse is the {status, value} envelope; Value encodes as null when
// absent.
type valueResponse struct {
	Status string      `json:"status"`
	Value  interface{} `json:"value"`
}

// TierResponse is one robot in GET /api/v1/meta/tiers.
type TierResponse struct {
	Live        int              `json:"live"`
	Capacity    int              `json:"capacity"`
	Ratio       float64          `json:"ratio"`
	Tier        string           `json:"tier"`
	Color       string           `json:"color"`
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// errorResponse is the structured error body.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
