package models

import "time"

// MarketStatus backs the staleness/error/fetching status affordance.
type MarketStatus struct {
	LastUpdated  time.Time         `json:"lastUpdated"`
	Fetching     bool              `json:"fetching"`
	Stale        bool              `json:"stale"`
	Error        string            `json:"error,omitempty"`
	ErrorKind    ErrorKind         `json:"errorKind,omitempty"`
	Suggestion   string            `json:"suggestion,omitempty"`
	UsedFallback bool              `json:"usedFallback"`
	Partial      map[string]string `json:"partial,omitempty"`
	Preset       string            `json:"preset"`
}
