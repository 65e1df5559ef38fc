package weather

// IconFor maps a condition to its display glyph. Cloud cover picks among the
// partial-cloud glyphs and may be nil.
func IconFor(c Condition, cloudCoverPct *float64) string {
	switch c {
	case ConditionClear:
		return "☀️"
	case ConditionClouds:
		if cloudCoverPct == nil {
			return "⛅"
		}
		switch {
		case *cloudCoverPct < 30:
			return "🌤️"
		case *cloudCoverPct < 70:
			return "⛅"
		default:
			return "☁️"
		}
	case ConditionRain:
		return "🌧️"
	case ConditionSnow:
		return "❄️"
	case ConditionThunderstorm:
		return "⛈️"
	case ConditionDrizzle:
		return "🌦️"
	case ConditionFog:
		return "🌫️"
	default:
		return "🌤️"
	}
}
