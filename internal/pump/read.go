package pump

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// defaultTelemetryWidth is assumed when a telemetry read leaves the byte
// width unspecified. Property reads must state their width explicitly.
const defaultTelemetryWidth = 2

// MonitoringPing reads the gateway monitoring endpoint (UUID, uptime,
// version). Returns nil on failure after retries.
func (c *Client) MonitoringPing(ctx context.Context) (*MonitoringInfo, error) {
	op := &operation{
		name:     "monitoring_ping",
		cacheKey: "system:ping",
		timeout:  c.cfg.ReadTimeout,
	}

	v, err := c.invoke(ctx, op, func(ctx context.Context) (any, error) {
		var info MonitoringInfo
		if err := c.doJSON(ctx, http.MethodGet, "/monitoring/ping", nil, op.timeout, &info); err != nil {
			return nil, err
		}
		return &info, nil
	})
	if err := c.degradeRead(ctx, op.name, err); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, nil
	}
	return v.(*MonitoringInfo), nil
}

// Dashboard reads the dashboard snapshot. Temperatures are fixed up from
// their signed-byte encoding during decode. Returns nil on failure.
func (c *Client) Dashboard(ctx context.Context) (*DashboardSnapshot, error) {
	uuid, err := c.SystemUUID(ctx)
	if err != nil {
		if err := c.degradeRead(ctx, "dashboard", err); err != nil {
			return nil, err
		}
		return nil, nil
	}

	op := &operation{
		name:     "dashboard",
		deviceID: uuid,
		cacheKey: uuid + ":dashboard",
		timeout:  c.cfg.ReadTimeout,
	}

	v, err := c.invoke(ctx, op, func(ctx context.Context) (any, error) {
		var wire dashboardWire
		if err := c.doJSON(ctx, http.MethodGet, "/system/"+uuid+"/dashboard", nil, op.timeout, &wire); err != nil {
			return nil, err
		}
		return wire.snapshot(), nil
	})
	if err := c.degradeRead(ctx, op.name, err); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, nil
	}
	return v.(*DashboardSnapshot), nil
}

// ThermalProfile reads the thermal profile snapshot (nested season and
// temperature sections flattened into the typed view). Returns nil on
// failure.
func (c *Client) ThermalProfile(ctx context.Context) (*ThermalProfileSnapshot, error) {
	uuid, err := c.SystemUUID(ctx)
	if err != nil {
		if err := c.degradeRead(ctx, "thermal_profile", err); err != nil {
			return nil, err
		}
		return nil, nil
	}

	op := &operation{
		name:     "thermal_profile",
		deviceID: uuid,
		cacheKey: uuid + ":thermalprofile",
		timeout:  c.cfg.ReadTimeout,
	}

	v, err := c.invoke(ctx, op, func(ctx context.Context) (any, error) {
		var wire thermalProfileWire
		if err := c.doJSON(ctx, http.MethodGet, "/system/"+uuid+"/thermalprofile", nil, op.timeout, &wire); err != nil {
			return nil, err
		}
		return wire.snapshot(), nil
	})
	if err := c.degradeRead(ctx, op.name, err); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, nil
	}
	return v.(*ThermalProfileSnapshot), nil
}

// Devices lists the devices connected to the gateway. Returns nil on
// failure.
func (c *Client) Devices(ctx context.Context) ([]DeviceInfo, error) {
	uuid, err := c.SystemUUID(ctx)
	if err != nil {
		if err := c.degradeRead(ctx, "devices", err); err != nil {
			return nil, err
		}
		return nil, nil
	}

	op := &operation{
		name:     "devices",
		deviceID: uuid,
		cacheKey: uuid + ":devices",
		timeout:  c.cfg.ReadTimeout,
	}

	v, err := c.invoke(ctx, op, func(ctx context.Context) (any, error) {
		var devices []DeviceInfo
		if err := c.doJSON(ctx, http.MethodGet, "/system/"+uuid+"/devices", nil, op.timeout, &devices); err != nil {
			return nil, err
		}
		return devices, nil
	})
	if err := c.degradeRead(ctx, op.name, err); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, nil
	}
	return v.([]DeviceInfo), nil
}

// DeviceDefinition reads the channel definition of one connected device.
// Returns nil on failure.
func (c *Client) DeviceDefinition(ctx context.Context, deviceUUID string) (*DeviceDefinition, error) {
	op := &operation{
		name:     "device_definition",
		deviceID: deviceUUID,
		cacheKey: deviceUUID + ":definition",
		timeout:  c.cfg.ReadTimeout,
	}

	v, err := c.invoke(ctx, op, func(ctx context.Context) (any, error) {
		var def DeviceDefinition
		if err := c.doJSON(ctx, http.MethodGet, "/device/"+deviceUUID+"/definition", nil, op.timeout, &def); err != nil {
			return nil, err
		}
		def.DeviceUUID = deviceUUID
		return &def, nil
	})
	if err := c.degradeRead(ctx, op.name, err); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, nil
	}
	return v.(*DeviceDefinition), nil
}

// ReadTelemetry reads one sensor channel and decodes it per factor, sign and
// byte width. Width defaults to two bytes when unspecified. Returns nil on
// transport/device failure; validation failures surface immediately.
func (c *Client) ReadTelemetry(ctx context.Context, deviceUUID string, addr TelemetryAddress, factor float64, signed bool, width int) (*ScaledReading, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("%w: scale factor must be > 0, got %v", ErrValidation, factor)
	}
	if width == 0 {
		width = defaultTelemetryWidth
	}
	if width < 1 || width > maxNumericWidth {
		return nil, fmt.Errorf("%w: telemetry width must be 1 or 2, got %d", ErrValidation, width)
	}

	op := &operation{
		name:     "telemetry",
		deviceID: deviceUUID,
		cacheKey: deviceUUID + ":t:" + string(addr),
		timeout:  c.cfg.ReadTimeout,
	}

	v, err := c.invoke(ctx, op, func(ctx context.Context) (any, error) {
		raw, err := c.readRawBytes(ctx, "/device/"+deviceUUID+"/telemetry/"+string(addr), op.timeout)
		if err != nil {
			return nil, err
		}
		value, err := DecodeValue(raw, width, signed)
		if err != nil {
			return nil, err
		}
		return NewScaledReading(deviceUUID, string(addr), value, factor, signed, width)
	})
	if err := c.degradeRead(ctx, op.name, err); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, nil
	}
	return v.(*ScaledReading), nil
}

// ReadProperty reads one control point and decodes it per factor, sign and
// byte width. Width is required for property reads. Returns nil on
// transport/device failure; validation failures surface immediately.
func (c *Client) ReadProperty(ctx context.Context, deviceUUID string, addr PropertyAddress, factor float64, signed bool, width int) (*ScaledReading, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("%w: scale factor must be > 0, got %v", ErrValidation, factor)
	}
	if width < 1 || width > maxNumericWidth {
		return nil, fmt.Errorf("%w: property width must be 1 or 2, got %d", ErrValidation, width)
	}

	op := &operation{
		name:     "property",
		deviceID: deviceUUID,
		cacheKey: deviceUUID + ":p:" + addr.Key(),
		timeout:  c.cfg.ReadTimeout,
	}

	v, err := c.invoke(ctx, op, func(ctx context.Context) (any, error) {
		raw, err := c.readRawBytes(ctx, propertyPath(deviceUUID, addr), op.timeout)
		if err != nil {
			return nil, err
		}
		value, err := DecodeValue(raw, width, signed)
		if err != nil {
			return nil, err
		}
		return NewScaledReading(deviceUUID, addr.String(), value, factor, signed, width)
	})
	if err := c.degradeRead(ctx, op.name, err); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, nil
	}
	return v.(*ScaledReading), nil
}

// ReadPropertyString reads a wide (3+ byte) property field as a string.
// Returns "" on transport/device failure.
func (c *Client) ReadPropertyString(ctx context.Context, deviceUUID string, addr PropertyAddress) (string, error) {
	op := &operation{
		name:     "property_string",
		deviceID: deviceUUID,
		cacheKey: deviceUUID + ":p:" + addr.Key(),
		timeout:  c.cfg.ReadTimeout,
	}

	v, err := c.invoke(ctx, op, func(ctx context.Context) (any, error) {
		raw, err := c.readRawBytes(ctx, propertyPath(deviceUUID, addr), op.timeout)
		if err != nil {
			return nil, err
		}
		return DecodeString(raw), nil
	})
	if err := c.degradeRead(ctx, op.name, err); err != nil {
		return "", err
	}
	if err != nil {
		return "", nil
	}
	return v.(string), nil
}

// propertyPath builds the read URL for a property address. All three path
// segments appear in the URL on reads; on writes Z moves into the body.
func propertyPath(deviceUUID string, addr PropertyAddress) string {
	return fmt.Sprintf("/device/%s/property/%d/%d/%d", deviceUUID, addr.X, addr.Y, addr.Z)
}

// readRawBytes fetches a raw byte run, transmitted by the gateway as a JSON
// array of byte values.
func (c *Client) readRawBytes(ctx context.Context, path string, timeout time.Duration) ([]byte, error) {
	var values []int
	if err := c.doJSON(ctx, http.MethodGet, path, nil, timeout, &values); err != nil {
		return nil, err
	}

	raw := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 0xFF {
			return nil, fmt.Errorf("%w: byte value %d out of range at index %d", ErrDevice, v, i)
		}
		raw[i] = byte(v)
	}
	return raw, nil
}
