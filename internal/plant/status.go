package plant

// Alarm thresholds for DeriveStatus.
const (
	WarnTemperature     = 850.0
	WarnPressure        = 175.0
	WarnFlow            = 20.0
	CriticalTemperature = 950.0
	CriticalPressure    = 185.0
	CriticalFlow        = 5.0
)

// DeriveStatus maps temperature (°C), coolant pressure (bar) and coolant flow
// (m³/s) to an overall status.
//
// The warning band is evaluated first and the critical band second; a critical
// match overrides a warning match. Thresholds are strict comparisons.
func DeriveStatus(temperature, pressure, flow float64) Status {
	status := StatusNormal
	if temperature > WarnTemperature || pressure > WarnPressure || flow < WarnFlow {
		status = StatusWarning
	}
	if temperature > CriticalTemperature || pressure > CriticalPressure || flow < CriticalFlow {
		status = StatusCritical
	}
	return status
}
