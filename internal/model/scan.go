package model

import "time"

// ScanTrigger indicates what started a scan.
type ScanTrigger string

const (
	TriggerSchedule ScanTrigger = "SCHEDULE"
	TriggerCommand  ScanTrigger = "COMMAND"
	TriggerStartup  ScanTrigger = "STARTUP"
	TriggerManual   ScanTrigger = "MANUAL"
)

// ScanRun carries the counters of a single pipeline run.
type ScanRun struct {
	ID            string
	Trigger       ScanTrigger
	StartedAt     time.Time
	Duration      time.Duration
	Symbols       int
	GainQualified int
	Scored        int
	CacheHits     int
	Qualified     int
	Entered       int
	Exited        int
	APICalls      int
	Notifications int
	Error         string
}

// ScanReport is the full outcome of a scan.
type ScanReport struct {
	Run       ScanRun
	Qualified []Candidate
	Entered   []Candidate
	Exited    []ActiveCoin
}
