package device

// UnknownBand is reported for frequencies outside every band in the plan.
const UnknownBand = "?"

// bandEdge is one amateur allocation in kHz, edges inclusive.
type bandEdge struct {
	name    string
	lowKHz  int64
	highKHz int64
}

var bandPlan = []bandEdge{
	{"160m", 1800, 2000},
	{"80m", 3500, 4000},
	{"40m", 7000, 7300},
	{"30m", 10100, 10150},
	{"20m", 14000, 14350},
	{"17m", 18068, 18168},
	{"15m", 21000, 21450},
	{"12m", 24890, 24990},
	{"10m", 28000, 29700},
	{"6m", 50000, 54000},
}

// BandForFrequency returns the band name for a frequency in Hz,
// or UnknownBand when no allocation contains it.
func BandForFrequency(hz int64) string {
	for _, b := range bandPlan {
		if hz >= b.lowKHz*1000 && hz <= b.highKHz*1000 {
			return b.name
		}
	}
	return UnknownBand
}

// Bands returns the band names of the plan in ascending frequency order.
func Bands() []string {
	names := make([]string, len(bandPlan))
	for i, b := range bandPlan {
		names[i] = b.name
	}
	return names
}
