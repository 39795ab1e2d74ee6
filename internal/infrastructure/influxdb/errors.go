package influxdb

import "errors"

// Sentinel errors, matchable with errors.Is. Write failures are not listed
// here: the batched write API reports them asynchronously through the
// SetOnError callback.
var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")
	ErrDisabled         = errors.New("influxdb: disabled in configuration")
)
