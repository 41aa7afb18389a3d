package state

// Summary is the system health overview derived from a snapshot, as shown in
// the console's status bar.
type Summary struct {
	ConnectedDevices int  `json:"connectedDevices"`
	TotalDevices     int  `json:"totalDevices"`
	HasErrors        bool `json:"hasErrors"`
	HasBusy          bool `json:"hasBusy"`

	// SystemReady is true when nothing is loading, the backend is reachable
	// and at least one device is connected.
	SystemReady bool `json:"systemReady"`
}

// Summarize derives the [Summary] of s.
func (s State) Summarize() Summary {
	sum := Summary{TotalDevices: len(s.Devices)}
	for _, d := range s.Devices {
		if d.Connected {
			sum.ConnectedDevices++
		}
		switch d.Status {
		case DeviceError:
			sum.HasErrors = true
		case DeviceBusy:
			sum.HasBusy = true
		}
	}
	sum.SystemReady = !s.IsLoading && s.BackendConnected && sum.ConnectedDevices > 0
	return sum
}

// DefaultDevices returns the seed table for the six instruments of the
// standard lab setup.
func DefaultDevices() []DeviceStatus {
	return []DeviceStatus{
		{ID: "arduino_uno_r4", Name: "Arduino Uno R4"},
		{ID: "continuum_surelite", Name: "Continuum Nd:YAG Laser"},
		{ID: "daylight_mircat", Name: "Daylight MIRcat Laser"},
		{ID: "picoscope_5244d", Name: "PicoScope 5244D"},
		{ID: "quantum_composers_9524", Name: "Quantum Composers 9524"},
		{ID: "zurich_hf2li", Name: "Zurich HF2LI"},
	}
}
