package models

import "time"

// RunReport summarises one pipeline run for a tenant.
type RunReport struct {
	TenantID      string
	StartedAt     time.Time
	Duration      time.Duration
	FullRebuild   bool
	WatermarkFrom time.Time
	WatermarkTo   time.Time

	RawRead        int
	Ingested       int
	HardFailures   map[string]int
	Filtered       map[string]int
	PricesAppended int

	LeadsInserted  int
	LeadsUpdated   int
	LeadsUnchanged int

	Groups         int
	PhoneGroups    int
	LocationGroups int
	TopLeads       []*Lead
}

// NewRunReport returns a report with its counters ready for use.
func NewRunReport(tenantID string, full bool) *RunReport {
	return &RunReport{
		TenantID:     tenantID,
		StartedAt:    time.Now(),
		FullRebuild:  full,
		HardFailures: make(map[string]int),
		Filtered:     make(map[string]int),
	}
}

// Dropped returns the total of hard failures and filtered records.
func (r *RunReport) Dropped() int {
	n := 0
	for _, c := range r.HardFailures {
		n += c
	}
	for _, c := range r.Filtered {
		n += c
	}
	return n
}
