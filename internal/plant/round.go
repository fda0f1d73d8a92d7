package plant

import "github.com/shopspring/decimal"

// Published precision, in decimal places.
const (
	defaultPlaces             = 2
	turbinePlaces             = 0
	radiationPlaces           = 4
	containmentPressurePlaces = 3
)

// Rounded returns the published form of s: every reading rounded half away
// from zero to its display precision, and the status re-derived from the
// rounded readings so a snapshot never disagrees with itself.
func (s State) Rounded() State {
	s.Temperature = round(s.Temperature, defaultPlaces)
	s.Pressure = round(s.Pressure, defaultPlaces)
	s.TurbineSpeed = round(s.TurbineSpeed, turbinePlaces)
	s.PowerOutput = round(s.PowerOutput, defaultPlaces)
	s.Radiation = round(s.Radiation, radiationPlaces)
	s.CoolantFlow = round(s.CoolantFlow, defaultPlaces)
	s.RodPosition = round(s.RodPosition, defaultPlaces)
	s.GridDemand = round(s.GridDemand, defaultPlaces)
	s.ContainmentPressure = round(s.ContainmentPressure, containmentPressurePlaces)
	s.ContainmentTemp = round(s.ContainmentTemp, defaultPlaces)
	s.ECCSReservoir = round(s.ECCSReservoir, defaultPlaces)
	s.Status = DeriveStatus(s.Temperature, s.Pressure, s.CoolantFlow)
	return s
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
