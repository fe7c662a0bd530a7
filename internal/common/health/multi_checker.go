package health

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

type MultiChecker struct {
	checkers []Checker
}

func NewMultiChecker(checkers ...Checker) *MultiChecker {
	return &MultiChecker{
		checkers: checkers,
	}
}

// Check runs every checker and returns all failures combined, or nil if every checker passed.
func (mc *MultiChecker) Check(ctx context.Context) error {
	var result *multierror.Error
	for _, checker := range mc.checkers {
		if err := checker.Check(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (mc *MultiChecker) Add(checker Checker) {
	mc.checkers = append(mc.checkers, checker)
}
