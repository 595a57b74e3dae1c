package wordpress

import (
	"io"
	"sync"
)

// progressReader reports the fraction of a fixed-size body that has been read.
type progressReader struct {
	r        io.Reader
	total    int64
	mu       sync.Mutex
	read     int64
	report   func(float64)
	lastSent float64
}

func newProgressReader(r io.Reader, total int64, report func(float64)) io.Reader {
	if report == nil || total <= 0 {
		return r
	}
	return &progressReader{r: r, total: total, report: report}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.mu.Lock()
		p.read += int64(n)
		fraction := float64(p.read) / float64(p.total)
		if fraction > 1 {
			fraction = 1
		}
		// Transport buffering can produce many tiny reads; only forward
		// changes of at least one percent.
		send := fraction-p.lastSent >= 0.01 || fraction == 1
		if send {
			p.lastSent = fraction
		}
		p.mu.Unlock()
		if send {
			p.report(fraction)
		}
	}
	return n, err
}
