package watcher

// ExtractNoCPReplies derives the "no control-plane replies" sample used by
// the fast-reboot verdict: the last non-zero sample of a recorded T1->VLAN
// trace, unless the sample before it is larger, in which case that earlier
// sample is used instead (the DUT's reply count tails off right before the
// control plane goes fully dark, which would otherwise understate the last
// healthy count). Returns 0 if the trace has no non-zero samples.
func ExtractNoCPReplies(trace []int) int {
	lastIdx := -1
	for i := len(trace) - 1; i >= 0; i-- {
		if trace[i] != 0 {
			lastIdx = i
			break
		}
	}
	if lastIdx == -1 {
		return 0
	}
	last := trace[lastIdx]
	if lastIdx == 0 {
		return last
	}
	prev := trace[lastIdx-1]
	if prev > last {
		return prev
	}
	return last
}
