// Package errors provides standardized error messaging for the simulation engine.
package errors

import (
	"fmt"
	"runtime"
)

// Category represents one of the error kinds from the error handling design.
type Category string

const (
	CategoryArguments Category = "ARGUMENTS"
	CategoryTopology  Category = "TOPOLOGY"
	CategoryAllocation Category = "ALLOCATION"
	CategoryIO        Category = "IO"
	CategoryTaskPanic Category = "TASK_PANIC"
)

// StandardError provides a consistent error format across the engine.
type StandardError struct {
	Category Category
	Code     string
	Message  string
	Context  map[string]interface{}
	Caller   string
}

// Error implements the error interface.
func (e *StandardError) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Category, e.Code, e.Message, e.Caller)
}

// newAt creates a new standardized error, capturing the call site of the
// exported constructor that invoked it.
func newAt(category Category, code, message string, context map[string]interface{}) *StandardError {
	pc, _, _, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &StandardError{Category: category, Code: code, Message: message, Context: context, Caller: caller}
}

// InvalidRules reports a Rules/CLI construction failure (InvalidArguments, §7).
func InvalidRules(reason string, context map[string]interface{}) *StandardError {
	return newAt(CategoryArguments, "INVALID_RULES", reason, context)
}

// NotEnoughCPUs reports that the execution planner could not satisfy a request (§4.C5, §7).
func NotEnoughCPUs(requested, available uint) *StandardError {
	return newAt(CategoryTopology, "NOT_ENOUGH_CPUS",
		fmt.Sprintf("requested %d cpus, machine offers %d", requested, available),
		map[string]interface{}{"requested": requested, "available": available})
}

// AllocationFailed reports a failed stripe/memory allocation (§7).
func AllocationFailed(reason string, context map[string]interface{}) *StandardError {
	return newAt(CategoryAllocation, "ALLOCATION_FAILED", reason, context)
}

// IOFailure reports a frame sink write/flush failure (§7).
func IOFailure(op string, cause error) *StandardError {
	return newAt(CategoryIO, "IO_FAILURE",
		fmt.Sprintf("%s: %v", op, cause),
		map[string]interface{}{"op": op, "cause": cause})
}

// TaskPanic records a worker task panic that was swallowed as best-effort (§7).
// It is never returned to a caller; the worker runtime passes it to the
// worker's OnPanic hook, if one is set, and continues.
func TaskPanic(recovered interface{}) *StandardError {
	return newAt(CategoryTaskPanic, "TASK_PANIC",
		fmt.Sprintf("worker task panicked: %v", recovered),
		map[string]interface{}{"recovered": recovered})
}
