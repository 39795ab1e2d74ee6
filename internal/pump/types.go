package pump

// Season is the heat pump's operating mode.
type Season int

// Operating modes as encoded by the gateway.
const (
	SeasonTransitional Season = 0
	SeasonHeating      Season = 1
	SeasonCooling      Season = 2
)

// String returns the human-readable season name.
func (s Season) String() string {
	switch s {
	case SeasonHeating:
		return "heating"
	case SeasonCooling:
		return "cooling"
	case SeasonTransitional:
		return "transitional"
	default:
		return "unknown"
	}
}

// HVACAction is what the heat pump is currently doing, derived from the
// status code in the dashboard payload.
type HVACAction int

// Derived actions.
const (
	ActionIdle HVACAction = iota
	ActionHeating
	ActionCooling
)

// Heat-pump status flag bits. The gateway documentation also carries a
// coarse 8-bit status table whose values overlap these bits; the flag-bit
// interpretation is the authoritative one, the coarse table is illustrative.
const (
	statusFlagHeating = 1 << 1
	statusFlagCooling = 1 << 2
)

// ActionFromStatus derives the HVAC action from a heat-pump status code
// using the flag-bit interpretation (bit 1 = heating, bit 2 = cooling).
func ActionFromStatus(status int) HVACAction {
	switch {
	case status&statusFlagHeating != 0:
		return ActionHeating
	case status&statusFlagCooling != 0:
		return ActionCooling
	default:
		return ActionIdle
	}
}

// String returns the human-readable action name.
func (a HVACAction) String() string {
	switch a {
	case ActionHeating:
		return "heating"
	case ActionCooling:
		return "cooling"
	default:
		return "idle"
	}
}

// MonitoringInfo is the gateway's monitoring/ping response. It is the source
// of the system UUID and uptime.
type MonitoringInfo struct {
	UUID    string `json:"uuid"`
	Uptime  int64  `json:"uptime"`
	Version string `json:"version"`
}

// DeviceInfo describes one device connected to the gateway.
type DeviceInfo struct {
	UUID    string `json:"uuid"`
	ModelID int    `json:"modelId"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ChannelDefinition describes one telemetry channel a device exposes.
type ChannelDefinition struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// DeviceDefinition is the definition payload of a connected device. Only one
// model class returns definitions worth fetching; see poll.Definitions.
type DeviceDefinition struct {
	DeviceUUID string              `json:"-"`
	Channels   []ChannelDefinition `json:"channels"`
}

// DashboardSnapshot is a point-in-time typed view of the gateway dashboard.
//
// Fields absent from an otherwise successful response stay nil; a snapshot
// is replaced wholesale each poll, never partially mutated.
type DashboardSnapshot struct {
	OutdoorTemp    *float64
	RoomTemp       *float64
	TankTemp       *float64
	FanSpeed       *int
	Season         *Season
	HPStandby      *bool
	ActiveScenario *int
	HeatingProfile *int
	CoolingProfile *int
	HPStatus       *int
}

// Action derives the HVAC action from the snapshot's status code.
// Returns ActionIdle when the status field is absent or the pump is standby.
func (s *DashboardSnapshot) Action() HVACAction {
	if s.HPStatus == nil {
		return ActionIdle
	}
	if s.HPStandby != nil && *s.HPStandby {
		return ActionIdle
	}
	return ActionFromStatus(*s.HPStatus)
}

// DashboardUpdate is a partial dashboard write. Every field is absent by
// default; only present fields are merged into the outgoing payload.
type DashboardUpdate struct {
	Season         *Season
	HPStandby      *bool
	FanSpeed       *int
	ActiveScenario *int
	HeatingProfile *int
	CoolingProfile *int
}

// payload writes only the present fields into the wire body.
func (u DashboardUpdate) payload() map[string]any {
	body := make(map[string]any)
	if u.Season != nil {
		body["season"] = int(*u.Season)
	}
	if u.HPStandby != nil {
		body["hpStandby"] = *u.HPStandby
	}
	if u.FanSpeed != nil {
		body["fanSpeed"] = *u.FanSpeed
	}
	if u.ActiveScenario != nil {
		body["scenario"] = *u.ActiveScenario
	}
	if u.HeatingProfile != nil {
		body["heatingProfile"] = *u.HeatingProfile
	}
	if u.CoolingProfile != nil {
		body["coolingProfile"] = *u.CoolingProfile
	}
	return body
}

// isEmpty reports whether no field is present.
func (u DashboardUpdate) isEmpty() bool {
	return len(u.payload()) == 0
}

// ThermalProfileSnapshot is a point-in-time typed view of the parameters
// governing automatic temperature control.
type ThermalProfileSnapshot struct {
	Season           *Season
	HeatingThreshold *float64
	CoolingThreshold *float64
	ComfortTemp      *float64
	PowerTemp        *float64
	EcoTemp          *float64
	ActivePreset     *int
}

// ThermalProfileUpdate is a partial thermal profile write in its single
// canonical internal shape. Legacy nested-section input is normalized into
// this struct before it reaches the wire encoding (see normalize.go).
type ThermalProfileUpdate struct {
	Season           *Season
	HeatingThreshold *float64
	CoolingThreshold *float64
	ComfortTemp      *float64
	PowerTemp        *float64
	EcoTemp          *float64
}

// payload assembles the nested wire body from the present fields only.
func (u ThermalProfileUpdate) payload() map[string]any {
	body := make(map[string]any)

	season := make(map[string]any)
	if u.Season != nil {
		season["mode"] = int(*u.Season)
	}
	if u.HeatingThreshold != nil {
		season["heatingThreshold"] = *u.HeatingThreshold
	}
	if u.CoolingThreshold != nil {
		season["coolingThreshold"] = *u.CoolingThreshold
	}
	if len(season) > 0 {
		body["season"] = season
	}

	temps := make(map[string]any)
	if u.ComfortTemp != nil {
		temps["comfort"] = *u.ComfortTemp
	}
	if u.PowerTemp != nil {
		temps["power"] = *u.PowerTemp
	}
	if u.EcoTemp != nil {
		temps["eco"] = *u.EcoTemp
	}
	if len(temps) > 0 {
		body["temperatures"] = temps
	}

	return body
}

// isEmpty reports whether no field is present.
func (u ThermalProfileUpdate) isEmpty() bool {
	return len(u.payload()) == 0
}

// dashboardWire is the raw dashboard JSON. Temperatures arrive with
// signed-byte encoding and are fixed up during decode.
type dashboardWire struct {
	OutsideTemp    *int  `json:"outsideTemp"`
	RoomTemp       *int  `json:"roomTemp"`
	DHWTemp        *int  `json:"dhwTemp"`
	FanSpeed       *int  `json:"fanSpeed"`
	Season         *int  `json:"season"`
	HPStandby      *bool `json:"hpStandby"`
	Scenario       *int  `json:"scenario"`
	HeatingProfile *int  `json:"heatingProfile"`
	CoolingProfile *int  `json:"coolingProfile"`
	HPStatus       *int  `json:"hpStatus"`
}

// snapshot converts the wire form, applying the signed-byte temperature
// fix-up.
func (w dashboardWire) snapshot() *DashboardSnapshot {
	s := &DashboardSnapshot{
		FanSpeed:       w.FanSpeed,
		HPStandby:      w.HPStandby,
		ActiveScenario: w.Scenario,
		HeatingProfile: w.HeatingProfile,
		CoolingProfile: w.CoolingProfile,
		HPStatus:       w.HPStatus,
		OutdoorTemp:    signedByteTemp(w.OutsideTemp),
		RoomTemp:       signedByteTemp(w.RoomTemp),
		TankTemp:       signedByteTemp(w.DHWTemp),
	}
	if w.Season != nil {
		season := Season(*w.Season)
		s.Season = &season
	}
	return s
}

// signedByteTemp fixes up a temperature transmitted as an unsigned byte:
// values above 127 are negative in two's complement.
func signedByteTemp(v *int) *float64 {
	if v == nil {
		return nil
	}
	raw := *v
	if raw >= 0x80 && raw <= 0xFF {
		raw -= 0x100
	}
	t := float64(raw)
	return &t
}

// thermalProfileWire is the raw thermal profile JSON with its nested season
// and temperature sections.
type thermalProfileWire struct {
	Season struct {
		Mode             *int     `json:"mode"`
		HeatingThreshold *float64 `json:"heatingThreshold"`
		CoolingThreshold *float64 `json:"coolingThreshold"`
	} `json:"season"`
	Temperatures struct {
		Comfort *float64 `json:"comfort"`
		Power   *float64 `json:"power"`
		Eco     *float64 `json:"eco"`
	} `json:"temperatures"`
	ActivePreset *int `json:"activePreset"`
}

// snapshot converts the wire form into the flat typed snapshot.
func (w thermalProfileWire) snapshot() *ThermalProfileSnapshot {
	s := &ThermalProfileSnapshot{
		HeatingThreshold: w.Season.HeatingThreshold,
		CoolingThreshold: w.Season.CoolingThreshold,
		ComfortTemp:      w.Temperatures.Comfort,
		PowerTemp:        w.Temperatures.Power,
		EcoTemp:          w.Temperatures.Eco,
		ActivePreset:     w.ActivePreset,
	}
	if w.Season.Mode != nil {
		season := Season(*w.Season.Mode)
		s.Season = &season
	}
	return s
}
