// Package types defines the public domain types for engine telemetry health analysis.
package types

import (
	"fmt"
	"strings"
)

// EngineState is the classified operating phase of the engine at one sample.
type EngineState int

// EngineState values follow the Off → Cranking → Unstable → Stable → Stopping → Off cycle.
const (
	EngineOff EngineState = iota
	EngineCranking
	EngineUnstable
	EngineStable
	EngineStopping
)

// AllEngineStates lists every state in cycle order.
var AllEngineStates = []EngineState{EngineOff, EngineCranking, EngineUnstable, EngineStable, EngineStopping}

// String returns a human-readable state name.
func (s EngineState) String() string {
	switch s {
	case EngineOff:
		return "off"
	case EngineCranking:
		return "cranking"
	case EngineUnstable:
		return "unstable"
	case EngineStable:
		return "stable"
	case EngineStopping:
		return "stopping"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Running reports whether the engine is turning in any form (cranking through stopping).
func (s EngineState) Running() bool {
	return s != EngineOff
}

// ValidityPolicy selects which engine states count a channel's sample as valid.
type ValidityPolicy string

// ValidityPolicy values, from most to least permissive.
const (
	AlwaysValid      ValidityPolicy = "AlwaysValid"
	ValidWhenKeyOn   ValidityPolicy = "ValidWhenKeyOn"
	ValidWhenRunning ValidityPolicy = "ValidWhenRunning"
	ValidWhenStable  ValidityPolicy = "ValidWhenStable"
)

// Admits reports whether a sample taken in state counts as valid under the policy.
// Unknown policies admit nothing.
func (p ValidityPolicy) Admits(state EngineState) bool {
	switch p {
	case AlwaysValid:
		return true
	case ValidWhenKeyOn:
		return state != EngineOff
	case ValidWhenRunning:
		return state == EngineUnstable || state == EngineStable
	case ValidWhenStable:
		return state == EngineStable
	default:
		return false
	}
}

// Valid reports whether p is one of the known policies.
func (p ValidityPolicy) Valid() bool {
	switch p {
	case AlwaysValid, ValidWhenKeyOn, ValidWhenRunning, ValidWhenStable:
		return true
	}
	return false
}

// Severity is the alert severity of a rule.
type Severity string

// Severity values.
const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Title returns the capitalized severity for display.
func (s Severity) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Logic combines a rule's conditions.
type Logic string

// Logic values.
const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Operator is a numeric comparison operator used by conditions.
type Operator string

// Operator values.
const (
	OpGreater        Operator = ">"
	OpLess           Operator = "<"
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
)

// Valid returns true when the operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OpGreater, OpLess, OpGreaterOrEqual, OpLessOrEqual, OpEqual, OpNotEqual:
		return true
	default:
		return false
	}
}

// RuleType selects the evaluation variant of a rule.
type RuleType string

// RuleType values. The set is closed; adding a variant means adding a case to the rule engine.
const (
	RuleGeneric     RuleType = "generic"
	RuleTipMapDelta RuleType = "tip_map_delta"
)

// StoreType selects the profile store backend.
type StoreType string

// StoreType values enumerate the supported profile store backends.
const (
	StoreFile     StoreType = "file"
	StoreRedis    StoreType = "redis"
	StorePostgres StoreType = "postgres"
	StoreDynamoDB StoreType = "dynamodb"
)

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole     AlertType = "console"
	AlertWebhook     AlertType = "webhook"
	AlertFile        AlertType = "file"
	AlertEventBridge AlertType = "eventbridge"
	AlertSQS         AlertType = "sqs"
)

// IssueKind classifies a non-fatal problem reported alongside analysis results.
type IssueKind string

const (
	IssueInvalidThreshold       IssueKind = "INVALID_THRESHOLD_VALUE"
	IssueMissingRequiredChannel IssueKind = "MISSING_REQUIRED_CHANNEL"
	IssueMalformedRule          IssueKind = "MALFORMED_RULE"
	IssueTimestampOrder         IssueKind = "TIMESTAMP_ORDER"
)
