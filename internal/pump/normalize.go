package pump

import "fmt"

// NormalizeThermalProfileUpdate maps either accepted input shape into the
// single canonical ThermalProfileUpdate.
//
// Two shapes are accepted, both producing the same wire payload:
//
//   - legacy nested sections:
//     {"season": {"mode": 1, "heatingThreshold": 15}, "temperatures": {"comfort": 21.5}}
//   - flat fields:
//     {"season": 1, "heatingThreshold": 15, "comfortTemp": 21.5}
//
// Unknown keys are rejected so malformed updates fail before any network
// call.
func NormalizeThermalProfileUpdate(in map[string]any) (ThermalProfileUpdate, error) {
	var upd ThermalProfileUpdate

	for key, val := range in {
		switch key {
		case "season":
			if nested, ok := val.(map[string]any); ok {
				if err := normalizeSeasonSection(nested, &upd); err != nil {
					return ThermalProfileUpdate{}, err
				}
				continue
			}
			mode, err := toInt(val)
			if err != nil {
				return ThermalProfileUpdate{}, fmt.Errorf("%w: season: %v", ErrValidation, err)
			}
			season := Season(mode)
			upd.Season = &season

		case "temperatures":
			nested, ok := val.(map[string]any)
			if !ok {
				return ThermalProfileUpdate{}, fmt.Errorf("%w: temperatures must be a nested section", ErrValidation)
			}
			if err := normalizeTemperatureSection(nested, &upd); err != nil {
				return ThermalProfileUpdate{}, err
			}

		case "heatingThreshold":
			if err := setFloat(val, key, &upd.HeatingThreshold); err != nil {
				return ThermalProfileUpdate{}, err
			}
		case "coolingThreshold":
			if err := setFloat(val, key, &upd.CoolingThreshold); err != nil {
				return ThermalProfileUpdate{}, err
			}
		case "comfortTemp":
			if err := setFloat(val, key, &upd.ComfortTemp); err != nil {
				return ThermalProfileUpdate{}, err
			}
		case "powerTemp":
			if err := setFloat(val, key, &upd.PowerTemp); err != nil {
				return ThermalProfileUpdate{}, err
			}
		case "ecoTemp":
			if err := setFloat(val, key, &upd.EcoTemp); err != nil {
				return ThermalProfileUpdate{}, err
			}

		default:
			return ThermalProfileUpdate{}, fmt.Errorf("%w: unknown thermal profile field %q", ErrValidation, key)
		}
	}

	return upd, nil
}

// normalizeSeasonSection folds a legacy nested season section into upd.
func normalizeSeasonSection(in map[string]any, upd *ThermalProfileUpdate) error {
	for key, val := range in {
		switch key {
		case "mode":
			mode, err := toInt(val)
			if err != nil {
				return fmt.Errorf("%w: season.mode: %v", ErrValidation, err)
			}
			season := Season(mode)
			upd.Season = &season
		case "heatingThreshold":
			if err := setFloat(val, "season.heatingThreshold", &upd.HeatingThreshold); err != nil {
				return err
			}
		case "coolingThreshold":
			if err := setFloat(val, "season.coolingThreshold", &upd.CoolingThreshold); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown season field %q", ErrValidation, key)
		}
	}
	return nil
}

// normalizeTemperatureSection folds a legacy nested temperature section into
// upd.
func normalizeTemperatureSection(in map[string]any, upd *ThermalProfileUpdate) error {
	for key, val := range in {
		switch key {
		case "comfort":
			if err := setFloat(val, "temperatures.comfort", &upd.ComfortTemp); err != nil {
				return err
			}
		case "power":
			if err := setFloat(val, "temperatures.power", &upd.PowerTemp); err != nil {
				return err
			}
		case "eco":
			if err := setFloat(val, "temperatures.eco", &upd.EcoTemp); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown temperatures field %q", ErrValidation, key)
		}
	}
	return nil
}

// setFloat assigns a numeric input value to dst.
func setFloat(val any, field string, dst **float64) error {
	f, err := toFloat(val)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidation, field, err)
	}
	*dst = &f
	return nil
}

// toFloat accepts the numeric types JSON decoding and Go callers produce.
func toFloat(val any) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", val)
	}
}

// toInt accepts the integral types JSON decoding and Go callers produce.
func toInt(val any) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		n := int(v)
		if float64(n) != v {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", val)
	}
}
