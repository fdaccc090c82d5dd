package brain

// Outcome tags how a synthesis stage ended.
type Outcome int

const (
	// OutcomeOk carries the model's value.
	OutcomeOk Outcome = iota
	// OutcomeDegraded carries a placeholder standing in for a failed synthesis.
	OutcomeDegraded
	// OutcomeFailed carries no usable value.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOk:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is a stage's value tagged with its outcome. Err is set for Degraded and Failed.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Outcome: OutcomeOk}
}

func Degraded[T any](placeholder T, err error) Result[T] {
	return Result[T]{Value: placeholder, Outcome: OutcomeDegraded, Err: err}
}

func Failed[T any](err error) Result[T] {
	return Result[T]{Outcome: OutcomeFailed, Err: err}
}

func (r Result[T]) IsOk() bool {
	return r.Outcome == OutcomeOk
}

// Usable reports whether Value can be passed downstream.
func (r Result[T]) Usable() bool {
	return r.Outcome != OutcomeFailed
}
