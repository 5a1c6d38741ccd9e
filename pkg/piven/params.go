// Package piven implements the PIVEN loss and the interval blending used to turn
// a three-wide regression head (upper bound, lower bound, value weight) into a
// point estimate with a prediction interval.
package piven

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultSoften = 160.0
	DefaultAlpha  = 0.05
)

var (
	ErrInvalidHyperparameter = errors.New("piven: invalid hyperparameter")
	ErrIncompatibleShape     = errors.New("piven: incompatible shape")
)

// Params fully parameterize the loss. Lambda weights the coverage penalty,
// Soften is the steepness of the soft in-interval indicator, 1-Alpha is the
// target coverage.
type Params struct {
	Lambda float64 `json:"lambda_" yaml:"lambda"`
	Soften float64 `json:"soften" yaml:"soften"`
	Alpha  float64 `json:"alpha" yaml:"alpha"`
}

func NewParams(lambda float64) Params {
	return Params{
		Lambda: lambda,
		Soften: DefaultSoften,
		Alpha:  DefaultAlpha,
	}
}

// WithDefaults fills unset Soften and Alpha.
func (p Params) WithDefaults() Params {
	if p.Soften == 0 {
		p.Soften = DefaultSoften
	}
	if p.Alpha == 0 {
		p.Alpha = DefaultAlpha
	}
	return p
}

func (p Params) Validate() error {
	if p.Lambda == 0 {
		return fmt.Errorf("%w: lambda is required", ErrInvalidHyperparameter)
	}
	if !isFinite(p.Lambda) || p.Lambda < 0 {
		return fmt.Errorf("%w: lambda %v must be finite and positive", ErrInvalidHyperparameter, p.Lambda)
	}
	if !(p.Alpha > 0 && p.Alpha < 1) {
		return fmt.Errorf("%w: alpha %v must be in (0,1)", ErrInvalidHyperparameter, p.Alpha)
	}
	if !isFinite(p.Soften) || !(p.Soften > 0) {
		return fmt.Errorf("%w: soften %v must be finite and positive", ErrInvalidHyperparameter, p.Soften)
	}
	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
