package types

import "time"

// StateTransition records one engine-state change at a sample index.
type StateTransition struct {
	Index int         `json:"index"`
	Time  float64     `json:"time"`
	From  EngineState `json:"from"`
	To    EngineState `json:"to"`
}

// ChannelStats summarizes the validity-masked samples of one channel.
type ChannelStats struct {
	Channel string  `json:"channel"`
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
}

// Dwell is the accumulated wall-clock time spent at one discrete value.
type Dwell struct {
	Value   string  `json:"value"`
	Seconds float64 `json:"seconds"`
	Percent float64 `json:"percent"`
}

// Report is the full outcome of analyzing one recording against one profile.
type Report struct {
	RunID            string             `json:"runId"`
	Recording        string             `json:"recording"`
	ProfileID        string             `json:"profileId"`
	InheritanceChain []string           `json:"inheritanceChain"`
	Samples          int                `json:"samples"`
	Transitions      []StateTransition  `json:"transitions,omitempty"`
	StateDwell       []Dwell            `json:"stateDwell,omitempty"`
	Channels         []ChannelStats     `json:"channels,omitempty"`
	CategoricalDwell map[string][]Dwell `json:"categoricalDwell,omitempty"`
	Alerts           []AlertEvent       `json:"alerts"`
	Issues           []Issue            `json:"issues,omitempty"`
	AnalyzedAt       time.Time          `json:"analyzedAt"`
}
