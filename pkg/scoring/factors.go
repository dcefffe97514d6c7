package scoring

import "time"

// Factor slot names. NewEngine matches factors to weights by these.
const (
	FactorLocation      = "location"
	FactorWeather       = "weather"
	FactorSocial        = "social"
	FactorDevice        = "device"
	FactorLegal         = "legal"
	FactorEntertainment = "entertainment"
)

// DefaultFactors returns deterministic implementations of every signal
// slot. Real deployments replace individual factors with ones backed by
// live data sources; these stand-ins depend only on the clock so that
// scores are reproducible.
func DefaultFactors() []Factor {
	return []Factor{
		locationFactor{},
		weatherFactor{},
		socialFactor{},
		deviceFactor{},
		legalFactor{},
		entertainmentFactor{},
	}
}

// locationFactor assumes people are easiest to reach where they settle:
// home in the evening and on weekends.
type locationFactor struct{}

func (locationFactor) Name() string { return FactorLocation }

func (locationFactor) Score(at time.Time) float64 {
	if at.Weekday() == time.Saturday || at.Weekday() == time.Sunday {
		return 0.85
	}
	hour := at.Hour()
	switch {
	case hour >= 18 || hour < 7:
		return 0.8
	case hour >= 9 && hour < 17:
		return 0.45
	default:
		return 0.6 // commute window
	}
}

// weatherFactor uses a coarse seasonal daylight proxy.
type weatherFactor struct{}

func (weatherFactor) Name() string { return FactorWeather }

func (weatherFactor) Score(at time.Time) float64 {
	month := at.Month()
	switch {
	case month >= time.May && month <= time.September:
		return 0.8
	case month == time.March || month == time.April || month == time.October:
		return 0.65
	default:
		return 0.5
	}
}

// socialFactor peaks on Friday and Saturday evenings.
type socialFactor struct{}

func (socialFactor) Name() string { return FactorSocial }

func (socialFactor) Score(at time.Time) float64 {
	evening := at.Hour() >= 18 && at.Hour() < 23
	switch at.Weekday() {
	case time.Friday, time.Saturday:
		if evening {
			return 0.95
		}
		return 0.7
	case time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday:
		if evening {
			return 0.7
		}
		return 0.5
	default:
		return 0.5
	}
}

// deviceFactor tracks waking hours, when a device is plausibly in hand.
type deviceFactor struct{}

func (deviceFactor) Name() string { return FactorDevice }

func (deviceFactor) Score(at time.Time) float64 {
	hour := at.Hour()
	switch {
	case hour >= 8 && hour < 23:
		return 0.9
	case hour == 7 || hour == 23:
		return 0.6
	default:
		return 0.1
	}
}

// legalFactor discounts hours where local quiet-hour rules typically
// apply.
type legalFactor struct{}

func (legalFactor) Name() string { return FactorLegal }

func (legalFactor) Score(at time.Time) float64 {
	hour := at.Hour()
	if hour >= 22 || hour < 8 {
		return 0.3
	}
	return 1.0
}

// entertainmentFactor dips during prime-time viewing hours.
type entertainmentFactor struct{}

func (entertainmentFactor) Name() string { return FactorEntertainment }

func (entertainmentFactor) Score(at time.Time) float64 {
	hour := at.Hour()
	if hour >= 20 && hour < 22 {
		return 0.4
	}
	if hour >= 12 && hour < 20 {
		return 0.8
	}
	return 0.6
}
