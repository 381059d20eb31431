package progress

import (
	"time"

	pb "gopkg.in/cheggaaa/pb.v1"
)

var maxBucketDuration = 1 * time.Second

// Counter tracks the progress of a long operation as an alpha in [0,1],
// renders it through a pb bar, and estimates bandwidth and ETA.
type Counter struct {
	lastBandwidthUpdate time.Time
	lastBandwidthAlpha  float64
	bps                 float64
	bar                 *pb.ProgressBar
	alpha               float64
	totalBytes          int64
	startTime           time.Time
}

func NewCounter() *Counter {
	// show to the 1/100ths of a percent (1/10000th of an alpha)
	bar := pb.New64(100 * 100)
	bar.AlwaysUpdate = true
	bar.RefreshRate = 125 * time.Millisecond
	bar.ShowCounters = false
	bar.ShowFinalTime = false
	bar.SetMaxWidth(80)

	return &Counter{
		bar: bar,
	}
}

func (c *Counter) SetTotalBytes(totalBytes int64) {
	c.totalBytes = totalBytes
}

func (c *Counter) SetSilent(silent bool) {
	c.bar.NotPrint = silent
}

// SetTheme sets the characters used to draw the bar
func (c *Counter) SetTheme(barStart, barEnd, current, empty string) {
	c.bar.Format(barStart + "\x00" + current + "\x00" + current + "\x00" + empty + "\x00" + barEnd)
}

// SetLabel sets the string printed next to the bar
func (c *Counter) SetLabel(label string) {
	c.bar.Postfix(" " + label)
}

func (c *Counter) Start() {
	c.startTime = time.Now()
	c.bar.Start()
}

func (c *Counter) Finish() {
	c.bar.Postfix("")
	c.bar.Finish()
}

func (c *Counter) Pause() {
	c.bar.AlwaysUpdate = false
}

func (c *Counter) Resume() {
	c.bar.AlwaysUpdate = true
}

func (c *Counter) SetProgress(alpha float64) {
	if c.totalBytes != 0 {
		if c.lastBandwidthUpdate.IsZero() {
			c.lastBandwidthUpdate = time.Now()
			c.lastBandwidthAlpha = alpha
		}
		bucketDuration := time.Since(c.lastBandwidthUpdate)

		if bucketDuration > maxBucketDuration {
			bytesSinceLastUpdate := float64(c.totalBytes) * (alpha - c.lastBandwidthAlpha)
			c.bps = bytesSinceLastUpdate / bucketDuration.Seconds()
			c.lastBandwidthUpdate = time.Now()
			c.lastBandwidthAlpha = alpha
		}
		// otherwise, keep current bps value
	} else {
		c.bps = 0
	}

	c.alpha = alpha
	c.bar.Set64(alphaToValue(alpha))
}

func (c *Counter) Progress() float64 {
	return c.alpha
}

// ETA extrapolates the time left from the time spent so far.
// Returns 0 before Start or before any progress was made.
func (c *Counter) ETA() time.Duration {
	if c.startTime.IsZero() || c.alpha <= 0 {
		return 0
	}
	if c.alpha >= 1.0 {
		return 0
	}

	elapsed := time.Since(c.startTime)
	total := time.Duration(float64(elapsed) / c.alpha)
	return total - elapsed
}

func (c *Counter) BPS() float64 {
	return c.bps
}

func alphaToValue(alpha float64) int64 {
	return int64(alpha * 100.0 * 100.0)
}
