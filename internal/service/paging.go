package service

// Paging bounds caller supplied page sizes.
type Paging struct {
	Default int
	Max     int
}

func (p Paging) Clamp(size int) int {
	def := p.Default
	if def <= 0 {
		def = 50
	}
	if size <= 0 {
		size = def
	}
	if p.Max > 0 && size > p.Max {
		size = p.Max
	}
	return size
}
