package assets

import "io"

// Progress reports bytes received for one asset. Total is -1 when the
// source does not announce a length.
type Progress struct {
	Loaded int64
	Total  int64
}

// Percent returns completion in [0, 100], or -1 when the total is unknown.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return -1
	}
	if p.Loaded >= p.Total {
		return 100
	}
	return int(p.Loaded * 100 / p.Total)
}

// ProgressFunc receives progress updates.
type ProgressFunc func(Progress)

// progressReader reports cumulative bytes read through fn.
type progressReader struct {
	r      io.Reader
	total  int64
	loaded int64
	fn     ProgressFunc
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc) *progressReader {
	if total <= 0 {
		total = -1
	}
	pr := &progressReader{r: r, total: total, fn: fn}
	fn(Progress{Loaded: 0, Total: total})
	return pr
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.loaded += int64(n)
		pr.fn(Progress{Loaded: pr.loaded, Total: pr.total})
	}
	return n, err
}
