package domain

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var metricPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatMetricValue renders a North-Star value for display according to its type.
func FormatMetricValue(value float64, typ MetricType) string {
	switch typ {
	case MetricCurrency:
		amount := metricPrinter.Sprint(number.Decimal(math.Abs(math.Round(value)), number.MaxFractionDigits(0)))
		if value < 0 {
			return "-$" + amount
		}
		return "$" + amount
	case MetricPercentage:
		return metricPrinter.Sprintf("%v%%", number.Decimal(value, number.MaxFractionDigits(2)))
	case MetricRatio:
		return metricPrinter.Sprint(number.Decimal(value, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	default:
		return metricPrinter.Sprint(number.Decimal(value, number.MaxFractionDigits(2)))
	}
}

// UnitLabel returns the input-field label for a metric type.
func UnitLabel(typ MetricType) string {
	switch typ {
	case MetricCurrency:
		return "$"
	case MetricPercentage:
		return "%"
	case MetricRatio:
		return "x"
	default:
		return "Units"
	}
}

// FormatProgress renders "current / target" for a North-Star metric.
func FormatProgress(ns NorthStarMetric) string {
	return FormatMetricValue(ns.CurrentValue, ns.Type) + " / " + FormatMetricValue(ns.TargetValue, ns.Type)
}
