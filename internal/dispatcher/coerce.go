package dispatcher

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitaliisemenov/sql-gateway/internal/apierrors"
	"github.com/vitaliisemenov/sql-gateway/internal/registry"
)

// coerce converts a raw request value to the Go type a registry.ParamType
// declares. Values already in their target type (as can happen for
// body-field sources parsed from JSON) pass through unchanged after a type
// check.
func coerce(paramName string, t registry.ParamType, raw any) (any, error) {
	switch t {
	case registry.TypeString:
		return coerceString(paramName, raw)
	case registry.TypeInteger:
		return coerceInteger(paramName, raw)
	case registry.TypeLong:
		return coerceLong(paramName, raw)
	case registry.TypeDecimal:
		return coerceDecimal(paramName, raw)
	case registry.TypeBoolean:
		return coerceBoolean(paramName, raw)
	case registry.TypeTimestamp:
		return coerceTimestamp(paramName, raw)
	default:
		return nil, apierrors.NewBadRequest(fmt.Sprintf("parameter %q: unsupported type %q", paramName, t))
	}
}

func coerceString(name string, raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func coerceInteger(name string, raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return int32(v), nil
	case int32:
		return v, nil
	case int64:
		return int32(v), nil
	case float64:
		return int32(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return nil, apierrors.NewBadRequest(fmt.Sprintf("parameter %q: %q is not a valid integer", name, v))
		}
		return int32(n), nil
	default:
		return nil, apierrors.NewBadRequest(fmt.Sprintf("parameter %q: expected an integer", name))
	}
}

func coerceLong(name string, raw any) (any, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, apierrors.NewBadRequest(fmt.Sprintf("parameter %q: %q is not a valid long integer", name, v))
		}
		return n, nil
	default:
		return nil, apierrors.NewBadRequest(fmt.Sprintf("parameter %q: expected a long integer", name))
	}
}

func coerceDecimal(name string, raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		if n, ok := raw.(float64); ok {
			return decimal.NewFromFloat(n), nil
		}
		return nil, apierrors.NewBadRequest(fmt.Sprintf("parameter %q: expected a decimal", name))
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, apierrors.NewBadRequest(fmt.Sprintf("parameter %q: %q is not a valid decimal", name, s))
	}
	return d, nil
}

func coerceBoolean(name string, raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, apierrors.NewBadRequest(fmt.Sprintf("parameter %q: %q is not a valid boolean", name, v))
		}
		return b, nil
	default:
		return nil, apierrors.NewBadRequest(fmt.Sprintf("parameter %q: expected a boolean", name))
	}
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceTimestamp(name string, raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, apierrors.NewBadRequest(fmt.Sprintf("parameter %q: expected an ISO-like timestamp", name))
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return nil, apierrors.NewBadRequest(fmt.Sprintf("parameter %q: %q is not a recognized timestamp", name, s))
}
