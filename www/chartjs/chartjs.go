package chartjs

import (
	"fmt"
	"math"
)

const NoOfHours = 24
const ColorYellow = "#ffc107d4"
const ColorRed = "#f44336d4"
const ColorBlue = "#2196f3d4"

// NewChart is an hourly line chart for one day with a left and a right axis.
func NewChart(title string) Chart {
	labels := make([]string, NoOfHours)
	for i := 0; i < NoOfHours; i++ {
		labels[i] = fmt.Sprintf("%02d:00", i)
	}

	chart := Chart{
		Type: "line",
		Data: ChartData{
			Labels: labels,
			Datasets: []ChartDataset{
				newDataset(ColorYellow, "YAxis1"),
				newDataset(ColorRed, "YAxis2"),
			},
		},
		Options: ChartOptions{
			Responsive: true,
			Plugins: ChartPlugins{
				Legend: ChartLegend{Display: true},
				Title:  ChartTitle{Display: false},
			},
			Scales: map[string]ChartScale{
				"YAxis1": newScale("left", ColorYellow),
				"YAxis2": newScale("right", ColorRed),
			},
		},
	}

	if title != "" {
		chart.Options.Plugins.Title = ChartTitle{Display: true, Text: title}
	}

	return chart
}

func newDataset(color, axis string) ChartDataset {
	return ChartDataset{
		Data:        make([]*float64, NoOfHours),
		BorderWidth: 1,
		Tension:     0.4,
		Fill:        true,
		BorderColor: color,
		YAxisID:     axis,
	}
}

func newScale(position, color string) ChartScale {
	return ChartScale{
		Type:     "linear",
		Display:  true,
		Position: position,
		Title:    ChartScaleTitle{Display: true, Color: color},
	}
}

// WithLabel names the dataset at index i.
func (c Chart) WithLabel(i int, label string) Chart {
	c.Data.Datasets[i].Label = label
	return c
}

// OnSameAxis moves the second dataset to the first axis and hides the
// second one, for two series of the same unit.
func (c Chart) OnSameAxis() Chart {
	c.Data.Datasets[1].YAxisID = "YAxis1"
	c.Data.Datasets[1].BorderColor = ColorBlue
	scale := c.Options.Scales["YAxis2"]
	scale.Display = false
	c.Options.Scales["YAxis2"] = scale
	return c
}

func (cs ChartScale) WithTitle(title string) ChartScale {
	cs.Title.Text = title
	return cs
}

func (cs ChartScale) WithMinAndMax(min, max float64) ChartScale {
	cs.Min = &min
	cs.Max = &max
	return cs
}

func FixedFloat64(num float64, precision int) *float64 {
	p := math.Pow(10, float64(precision))
	rounded := math.Round(num * p)
	result := rounded / p
	return &result
}
