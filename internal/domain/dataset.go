package domain

import "time"

// DatasetRow is one labeled (symbol, date) observation of a horizon dataset.
// Features holds every px_* column; undefined features are NaN.
type DatasetRow struct {
	Symbol    string
	Market    string
	Date      time.Time
	Open      float64
	Close     float64
	LogReturn float64
	Features  map[string]float64
	Target    float64
}
