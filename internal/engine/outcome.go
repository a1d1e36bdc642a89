package engine

import (
	"errors"
	"fmt"
)

// GuardOutcome is the normalized result of evaluating a guard.
// The guard evaluator does not know the discipline; each resolver decides
// what GuardSkip means.
type GuardOutcome int

const (
	// GuardPass means the clause should be attempted.
	GuardPass GuardOutcome = iota
	// GuardSkip means the guard returned false, returned an error, or panicked.
	GuardSkip
)

func (g GuardOutcome) String() string {
	if g == GuardPass {
		return "pass"
	}
	return "skip"
}

// EvaluateGuard invokes guard against args.
// A nil guard passes. False, any error, and any panic all yield GuardSkip.
func EvaluateGuard(guard Guard, args Args) GuardOutcome {
	outcome, _ := evaluateGuard(guard, args)
	return outcome
}

// evaluateGuard is EvaluateGuard that also returns the reason for a skip
// caused by an error or panic, for logging.
func evaluateGuard(guard Guard, args Args) (outcome GuardOutcome, reason error) {
	if guard == nil {
		return GuardPass, nil
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = GuardSkip
			reason = fmt.Errorf("guard panicked: %v", r)
		}
	}()

	ok, err := guard(args)
	if err != nil {
		return GuardSkip, err
	}
	if !ok {
		return GuardSkip, nil
	}
	return GuardPass, nil
}

// OutcomeKind tags the result of running a clause body.
type OutcomeKind int

const (
	// OutcomeOK means the body completed.
	OutcomeOK OutcomeKind = iota
	// OutcomeFail means the body returned a failure signal.
	OutcomeFail
	// OutcomeError means the body returned any other error or panicked.
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeFail:
		return "fail"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of running a clause body.
type Outcome struct {
	Kind    OutcomeKind
	Message string // failure message, if any
	Err     error  // original error for OutcomeFail and OutcomeError
}

// classify reduces a body error to a tagged Outcome.
func classify(err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeOK}
	}
	var f *Failure
	if errors.As(err, &f) {
		return Outcome{Kind: OutcomeFail, Message: f.Message, Err: err}
	}
	if IsFailure(err) {
		return Outcome{Kind: OutcomeFail, Err: err}
	}
	return Outcome{Kind: OutcomeError, Message: err.Error(), Err: err}
}

// runBody executes body and classifies its result. Panics are recovered
// and classified as OutcomeError.
func runBody(body Body, args Args) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Kind: OutcomeError, Message: fmt.Sprint(r), Err: fmt.Errorf("body panicked: %v", r)}
		}
	}()
	return classify(body(args))
}
