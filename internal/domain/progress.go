package domain

// Progress is the loading indicator state published after every page outcome.
type Progress struct {
	Episode   string
	Symbol    string
	Window    TimeWindow
	Fraction  float64 // in [0, 1]; exactly 1 only when the episode completed
	PagesDone int
	PageCount int
	Failed    bool
}
