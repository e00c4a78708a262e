package domain

// ComputeStatus derives the overall target status from the complete asset
// map. It is a pure function and must be recomputed from the full map after
// every asset mutation; asset updates for different types arrive in no
// particular order.
//
// A failed asset only dominates once its retry budget is exhausted, so a
// single transient failure mid-pipeline does not surface as a target failure
// while a retry is still possible.
func ComputeStatus(assets map[AssetType]AssetState, maxAttempts int) TargetStatus {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if len(assets) == 0 {
		return StatusPending
	}

	allReady := true
	allPending := true
	exhausted := false
	for _, a := range assets {
		if a.Status != StatusReady {
			allReady = false
		}
		if a.Status != StatusPending {
			allPending = false
		}
		if a.Status == StatusFailed && a.Attempt >= maxAttempts {
			exhausted = true
		}
	}

	switch {
	case allReady:
		return StatusReady
	case exhausted:
		return StatusFailed
	case allPending:
		return StatusPending
	default:
		return StatusGenerating
	}
}

// Complete is the completion gate: true iff every required asset type for the
// kind is ready with a stored URL. Equivalent to ComputeStatus returning
// StatusReady for a well-formed asset map.
func Complete(kind TargetKind, assets map[AssetType]AssetState) bool {
	required := AssetTypesForKind(kind)
	if len(required) == 0 {
		return false
	}
	for _, at := range required {
		a, ok := assets[at]
		if !ok || a.Status != StatusReady || a.URL == "" {
			return false
		}
	}
	return true
}
