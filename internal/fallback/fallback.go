// Package fallback runs an ordered list of strategies until one produces a result.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted matches any *ExhaustedError.
var ErrExhausted = errors.New("all strategies exhausted")

// ErrEmpty is recorded when a strategy succeeds with an empty result.
var ErrEmpty = errors.New("empty result")

// Strategy is one way of producing a T.
type Strategy[T any] struct {
	Name string
	Do   func(ctx context.Context) (T, error)
}

// ExhaustedError is returned when every strategy failed or came back empty.
type ExhaustedError struct {
	Attempts []string
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%d strategies exhausted, last error: %v", len(e.Attempts), e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// Run tries strategies strictly in order. The first result that is neither an
// error nor empty wins. A cancelled ctx stops iteration.
func Run[T any](ctx context.Context, log *slog.Logger, strategies []Strategy[T], empty func(T) bool) (T, error) {
	var zero T
	if log == nil {
		log = slog.Default()
	}

	exhausted := &ExhaustedError{Last: ErrEmpty}
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			exhausted.Last = err
			return zero, exhausted
		}

		exhausted.Attempts = append(exhausted.Attempts, s.Name)
		v, err := s.Do(ctx)
		if err == nil && empty != nil && empty(v) {
			err = ErrEmpty
		}
		if err == nil {
			return v, nil
		}

		log.Warn("strategy failed", "strategy", s.Name, "err", err)
		exhausted.Last = fmt.Errorf("%s: %w", s.Name, err)
	}
	return zero, exhausted
}
