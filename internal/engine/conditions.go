// Package engine implements the workflow automation core: condition
// evaluation, step dispatch, run execution and the cron-sourced overdue
// sweep.
package engine

import (
	"fmt"
	"strconv"
	"strings"

	"automation-service/internal/model"
)

// EvaluateConditions reports whether the trigger payload satisfies the
// workflow's condition set. It is a pure function: no I/O, deterministic for
// identical inputs, and it never panics on malformed input.
//
// An empty condition set always matches. Logic defaults to AND; any value
// other than OR is treated as AND.
func EvaluateConditions(cfg model.TriggerConfig, data map[string]interface{}) bool {
	if len(cfg.Conditions) == 0 {
		return true
	}
	or := cfg.Logic == model.LogicOr
	for _, cond := range cfg.Conditions {
		matched := evaluateCondition(cond, data)
		if or && matched {
			return true
		}
		if !or && !matched {
			return false
		}
	}
	return !or
}

func evaluateCondition(cond model.Condition, data map[string]interface{}) bool {
	value, present := data[cond.Field]

	switch cond.Operator {
	case model.OpExists:
		return present
	case model.OpNotExists:
		return !present
	}

	// Every other operator needs the field to be present.
	if !present {
		return false
	}

	switch cond.Operator {
	case model.OpEquals:
		return looseEqual(value, cond.Value)
	case model.OpNotEquals:
		return !looseEqual(value, cond.Value)
	case model.OpContains:
		return contains(value, cond.Value)
	case model.OpGreaterThan:
		a, aok := toFloat(value)
		b, bok := toFloat(cond.Value)
		return aok && bok && a > b
	case model.OpLessThan:
		a, aok := toFloat(value)
		b, bok := toFloat(cond.Value)
		return aok && bok && a < b
	default:
		// Unknown operators never match.
		return false
	}
}

// looseEqual compares numerically when both sides coerce to numbers, and by
// string representation otherwise, so a stored condition value of "42"
// matches a payload value of 42.
func looseEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// contains checks substring membership for strings and element membership
// for slices. Other types never match.
func contains(haystack, needle interface{}) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, fmt.Sprint(needle))
	case []interface{}:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
