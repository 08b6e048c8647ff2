package iterutil

func Map[T any, Slice ~[]E, E any](s Slice, f func(i int, v E) T) []T {
	result := make([]T, len(s))
	for i, v := range s {
		result[i] = f(i, v)
	}

	return result
}

// Compact keeps the values for which f reports true, preserving order.
func Compact[T any, Slice ~[]E, E any](s Slice, f func(i int, v E) (T, bool)) []T {
	result := make([]T, 0, len(s))
	for i, v := range s {
		if out, ok := f(i, v); ok {
			result = append(result, out)
		}
	}

	return result
}
