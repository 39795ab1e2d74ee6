package pump

import (
	"context"
	"fmt"
	"math"
	"net/http"
)

// UpdateDashboard applies a partial dashboard write. Only fields present in
// upd are sent. An empty update is a no-op.
//
// Unlike reads, writes surface failure: a user-intended state change that
// silently fails is unacceptable.
func (c *Client) UpdateDashboard(ctx context.Context, upd DashboardUpdate) error {
	if upd.isEmpty() {
		return nil
	}

	uuid, err := c.SystemUUID(ctx)
	if err != nil {
		return fmt.Errorf("%w: dashboard update: %w", ErrWriteFailed, err)
	}

	op := &operation{
		name:     "update_dashboard",
		write:    true,
		deviceID: uuid,
		timeout:  c.cfg.WriteTimeout,
	}

	_, err = c.invoke(ctx, op, func(ctx context.Context) (any, error) {
		return nil, c.doJSON(ctx, http.MethodPut, "/system/"+uuid+"/dashboard", upd.payload(), op.timeout, nil)
	})
	if err != nil {
		return fmt.Errorf("%w: dashboard update: %w", ErrWriteFailed, err)
	}
	return nil
}

// UpdateThermalProfile applies a partial thermal profile write from the
// canonical update struct. An empty update is a no-op.
func (c *Client) UpdateThermalProfile(ctx context.Context, upd ThermalProfileUpdate) error {
	if upd.isEmpty() {
		return nil
	}

	uuid, err := c.SystemUUID(ctx)
	if err != nil {
		return fmt.Errorf("%w: thermal profile update: %w", ErrWriteFailed, err)
	}

	op := &operation{
		name:     "update_thermal_profile",
		write:    true,
		deviceID: uuid,
		timeout:  c.cfg.WriteTimeout,
	}

	_, err = c.invoke(ctx, op, func(ctx context.Context) (any, error) {
		return nil, c.doJSON(ctx, http.MethodPut, "/system/"+uuid+"/thermalprofile", upd.payload(), op.timeout, nil)
	})
	if err != nil {
		return fmt.Errorf("%w: thermal profile update: %w", ErrWriteFailed, err)
	}
	return nil
}

// UpdateThermalProfileFields accepts either the legacy nested-section shape
// or the flat field shape, normalizes it, and applies the update. Both
// shapes produce the identical wire payload.
func (c *Client) UpdateThermalProfileFields(ctx context.Context, fields map[string]any) error {
	upd, err := NormalizeThermalProfileUpdate(fields)
	if err != nil {
		return err
	}
	return c.UpdateThermalProfile(ctx, upd)
}

// SetProperty writes a scaled value to a control point.
//
// The value is divided by factor, rounded, encoded per sign and width, and
// sent as PUT /device/{dev}/property/{x}/{y} with body [z, value bytes...] —
// the Z segment rides as the first data byte (sub-property selector). This
// wire layout must be preserved exactly for device compatibility.
//
// Calls for the same device and address within the debounce window collapse
// into a single request carrying the last value (a slider being dragged
// produces one write).
func (c *Client) SetProperty(ctx context.Context, deviceUUID string, addr PropertyAddress, value float64, factor float64, signed bool, width int) error {
	if factor <= 0 {
		return fmt.Errorf("%w: scale factor must be > 0, got %v", ErrValidation, factor)
	}

	raw := int64(math.Round(value / factor))
	encoded, err := EncodeValue(raw, width, signed)
	if err != nil {
		return err
	}

	body := make([]int, 0, len(encoded)+1)
	body = append(body, addr.Z)
	for _, b := range encoded {
		body = append(body, int(b))
	}

	op := &operation{
		name:     "set_property",
		write:    true,
		deviceID: deviceUUID,
		timeout:  c.cfg.WriteTimeout,
	}
	path := fmt.Sprintf("/device/%s/property/%d/%d", deviceUUID, addr.X, addr.Y)

	debounceKey := deviceUUID + ":" + addr.String()
	_, err = c.gov.Debounce(ctx, debounceKey, c.gov.cfg.DebounceDelay, func(ctx context.Context) (any, error) {
		return c.invoke(ctx, op, func(ctx context.Context) (any, error) {
			return nil, c.doJSON(ctx, http.MethodPut, path, body, op.timeout, nil)
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: property %s: %w", ErrWriteFailed, addr, err)
	}
	return nil
}

// ResetSystem restarts the gateway controller. The full value cache is
// dropped afterwards; everything is re-read once the gateway returns.
func (c *Client) ResetSystem(ctx context.Context) error {
	uuid, err := c.SystemUUID(ctx)
	if err != nil {
		return fmt.Errorf("%w: reset: %w", ErrWriteFailed, err)
	}

	op := &operation{
		name:     "reset_system",
		write:    true,
		deviceID: uuid,
		timeout:  c.cfg.WriteTimeout,
	}

	_, err = c.invoke(ctx, op, func(ctx context.Context) (any, error) {
		return nil, c.doJSON(ctx, http.MethodPost, "/system/"+uuid+"/reset", nil, op.timeout, nil)
	})
	if err != nil {
		return fmt.Errorf("%w: reset: %w", ErrWriteFailed, err)
	}

	c.gov.ClearCache()
	return nil
}

// SetHvacSeason sets the operating season and standby flag as one logical
// unit: the thermal-profile season write followed by the dashboard standby
// write.
//
// The gateway offers no transactions, so this is a best-effort composite:
// if the second write fails its error is surfaced while the first write's
// effect remains applied on the device.
func (c *Client) SetHvacSeason(ctx context.Context, season Season, standby bool) error {
	if err := c.UpdateThermalProfile(ctx, ThermalProfileUpdate{Season: &season}); err != nil {
		return err
	}
	return c.UpdateDashboard(ctx, DashboardUpdate{HPStandby: &standby})
}
