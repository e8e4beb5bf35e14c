package model

import (
	"fmt"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// ParamFloat converts a SetParams value to float64.
func ParamFloat(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return 0, errors.NewValidationError(name, "must be a number", v)
	}
}

// ParamInt converts a SetParams value to int. Whole floats are accepted.
func ParamInt(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != float64(int(x)) {
			return 0, errors.NewValidationError(name, "must be an integer", v)
		}
		return int(x), nil
	default:
		return 0, errors.NewValidationError(name, "must be an integer", v)
	}
}

// ParamString converts a SetParams value to string.
func ParamString(name string, v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return "", errors.NewValidationError(name, "must be a string", v)
	}
}

// ParamBool converts a SetParams value to bool.
func ParamBool(name string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.NewValidationError(name, "must be a bool", v)
	}
	return b, nil
}

// UnknownParam is returned by SetParams for keys the estimator does not have.
func UnknownParam(model, name string) error {
	return errors.NewValidationError(name, fmt.Sprintf("invalid parameter for estimator %s", model), name)
}
