package plant

import "math"

// Model constants.
const (
	DefaultSmoothing = 0.05

	DemandMin    = 250.0
	DemandMax    = 1000.0
	DemandJitter = 5.0 // ± MW per tick

	AutoRodGain = 0.05 // rod target change per MW of demand error

	PumpCapacity = 50.0 // m³/s per running pump

	HeatGain         = 15.0
	DissipationScale = 45.0
	HeatRate         = 0.1
	TemperatureFloor = 30.0

	ECCSCooling = 50.0 // °C removed per tick while Active
	ECCSDrain   = 2.0  // reservoir % consumed per tick while Active

	TurbineThreshold = 300.0 // °C below which the turbine is not driven
	TurbineGain      = 5.5   // RPM per °C above the threshold

	SyncMinSpeed    = 1000.0 // RPM required before output is delivered
	RatedSpeed      = 3600.0
	RatedPower      = 1200.0 // MW at rated speed
	SyncSpeed       = 1800.0
	SyncSpeedWindow = 50.0

	ContainmentLag = 0.0001

	TemperatureNoise = 0.25 // ± °C
	PowerNoise       = 0.1  // ± MW
)

// Rand is the random source consumed by Step. *math/rand.Rand satisfies it.
// Step draws exactly three values per call, in this order: demand walk,
// temperature noise, power noise.
type Rand interface {
	Float64() float64
}

// Input carries the control-mode signal into Step.
type Input struct {
	// Auto enables proportional rod adjustment toward grid demand.
	Auto bool
	// RodTarget is the desired rod position before any automatic adjustment.
	RodTarget float64
	// Smoothing is the convergence factor; zero selects DefaultSmoothing.
	Smoothing float64
}

// Result is the output of one Step.
type Result struct {
	State State
	// RodTarget is the target after automatic adjustment. In Manual mode it is
	// the clamped input target.
	RodTarget float64
}

// Step advances the plant by one tick. It never mutates prev.
func Step(prev State, in Input, rng Rand) Result {
	f := in.Smoothing
	if f <= 0 {
		f = DefaultSmoothing
	}
	next := prev

	// 1. demand random walk
	next.GridDemand = clamp(prev.GridDemand+(rng.Float64()-0.5)*2*DemandJitter, DemandMin, DemandMax)

	// 2. automatic rod target
	target := ClampPercent(in.RodTarget)
	if in.Auto {
		target = ClampPercent(target - (next.GridDemand-prev.PowerOutput)*AutoRodGain)
	}

	// 3. rods
	next.RodPosition = ClampPercent(converge(prev.RodPosition, target, f))

	// 4. coolant flow
	flowTarget := 0.0
	if prev.PumpA {
		flowTarget += PumpCapacity
	}
	if prev.PumpB {
		flowTarget += PumpCapacity
	}
	next.CoolantFlow = converge(prev.CoolantFlow, flowTarget, f)

	// 5. heat balance
	reactionRate := (100 - next.RodPosition) / 100
	generated := reactionRate * HeatGain
	dissipated := (next.CoolantFlow / 100) * (prev.Temperature / DissipationScale)
	temperature := prev.Temperature + (generated-dissipated)*HeatRate

	// 6. ECCS
	if prev.ECCS == ECCSActive {
		temperature -= ECCSCooling
		next.ECCSReservoir = prev.ECCSReservoir - ECCSDrain
		if next.ECCSReservoir <= 0 {
			next.ECCSReservoir = 0
			next.ECCS = ECCSFault
		}
	}
	temperature = math.Max(TemperatureFloor, temperature)

	// 7. turbine
	speedTarget := 0.0
	if temperature > TurbineThreshold {
		speedTarget = (temperature - TurbineThreshold) * TurbineGain
	}
	next.TurbineSpeed = converge(prev.TurbineSpeed, speedTarget, f)

	// 8. generator
	powerTarget := 0.0
	if prev.GridSync == GridConnected && next.TurbineSpeed > SyncMinSpeed {
		powerTarget = next.TurbineSpeed / RatedSpeed * RatedPower
	}
	next.PowerOutput = converge(prev.PowerOutput, powerTarget, f)

	// 9. derived readings
	next.Pressure = 150 + (temperature-400)*0.05 + next.CoolantFlow/100*5
	next.Radiation = 0.002 + (temperature/100000)*reactionRate
	next.ContainmentTemp = prev.ContainmentTemp + (temperature-prev.ContainmentTemp-20)*ContainmentLag
	next.ContainmentPressure = 1 + next.ContainmentTemp/1000

	// 10. grid synchronisation
	if prev.GridSync == GridSynchronizing && math.Abs(next.TurbineSpeed-SyncSpeed) < SyncSpeedWindow {
		next.GridSync = GridConnected
	}

	// 11. noise, re-clamped
	temperature += (rng.Float64() - 0.5) * 2 * TemperatureNoise
	next.Temperature = math.Max(TemperatureFloor, temperature)
	next.PowerOutput = math.Max(0, next.PowerOutput+(rng.Float64()-0.5)*2*PowerNoise)

	// 12. status
	next.Status = DeriveStatus(next.Temperature, next.Pressure, next.CoolantFlow)

	return Result{State: next, RodTarget: target}
}

func converge(value, target, factor float64) float64 {
	return value + (target-value)*factor
}
