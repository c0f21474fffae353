package utils

// Filter keeps the items of src for which keep reports true, in order.
// The result never aliases src and is nil when nothing is kept.
func Filter[T any](src []T, keep func(T) bool) []T {
	var out []T
	for _, v := range src {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
