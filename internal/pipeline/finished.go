package pipeline

// IsFinished reports whether every node in the snapshot reached a terminal
// state. A nil state counts as not finished.
func IsFinished(s Snapshot) bool {
	for _, status := range s {
		if status.State == nil || !status.State.Terminal() {
			return false
		}
	}
	return true
}

// StateCounts tallies nodes by state name (waiting, running, success, error).
func StateCounts(s Snapshot) map[string]int {
	counts := map[string]int{
		"waiting": 0,
		"running": 0,
		"success": 0,
		"error":   0,
	}
	for _, status := range s {
		switch status.State.(type) {
		case Waiting:
			counts["waiting"]++
		case Running:
			counts["running"]++
		case Success:
			counts["success"]++
		case Failed:
			counts["error"]++
		}
	}
	return counts
}
