package dictionary

import (
	"fmt"
	"time"

	"github.com/spf13/cast"

	"meridian-hq/meridian/pkg/rules"
)

// CoerceValue converts a loosely typed transaction value to the Go
// representation of the declared field type: string for STRING/ENUM, float64
// for NUMBER/DECIMAL, bool for BOOLEAN, and time.Time for DATE. Dates accept
// RFC 3339 timestamps, "2006-01-02" dates, and numeric Unix seconds.
func CoerceValue(v any, t rules.FieldType) (any, error) {
	switch t {
	case rules.TypeString, rules.TypeEnum:
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %T to %s: %w", v, t, err)
		}
		return s, nil

	case rules.TypeNumber, rules.TypeDecimal:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %T to %s: %w", v, t, err)
		}
		return f, nil

	case rules.TypeBoolean:
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %T to %s: %w", v, t, err)
		}
		return b, nil

	case rules.TypeDate:
		ts, err := toTime(v)
		if err != nil {
			return nil, fmt.Errorf("cannot coerce %T to %s: %w", v, t, err)
		}
		return ts, nil

	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
}

func toTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		if ts, err := time.Parse(time.RFC3339, val); err == nil {
			return ts, nil
		}
		if ts, err := time.Parse("2006-01-02", val); err == nil {
			return ts, nil
		}
		return time.Time{}, fmt.Errorf("unrecognized date format %q", val)
	default:
		// Numeric values are Unix seconds.
		secs, err := cast.ToInt64E(v)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(secs, 0).UTC(), nil
	}
}
