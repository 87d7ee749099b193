package sequencer

// WrapSelection moves current by delta within [0, n), wrapping at both ends.
// Returns -1 when the list is empty. A negative current (no selection) is
// treated as sitting just before the first entry when moving down and just
// after the last when moving up.
func WrapSelection(current, delta, n int) int {
	if n <= 0 {
		return -1
	}
	if current < 0 || current >= n {
		if delta >= 0 {
			current = -1
		} else {
			current = n
		}
	}
	next := (current + delta) % n
	if next < 0 {
		next += n
	}
	return next
}

// ClampSelection keeps an index inside [0, n) or returns -1 for an empty list.
func ClampSelection(current, n int) int {
	if n <= 0 {
		return -1
	}
	if current < 0 {
		return 0
	}
	if current >= n {
		return n - 1
	}
	return current
}
