package utils

// NormalizePage page 从 1 开始，size 默认 20，最大 200
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 20
	}
	return page, size
}
