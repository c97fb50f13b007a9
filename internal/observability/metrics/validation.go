package metrics

import "time"

// ChainChecked records the outcome of a chain validation.
func ChainChecked(status string) {
	if !enabled {
		return
	}
	chainChecksTotal.WithLabelValues(status).Inc()
}

// ContractChecked records the outcome of a contract code check.
func ContractChecked(status string) {
	if !enabled {
		return
	}
	contractChecksTotal.WithLabelValues(status).Inc()
}

// RPCCall records the latency of a JSON-RPC call.
func RPCCall(method string, d time.Duration, err error) {
	if !enabled {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	rpcCallDuration.WithLabelValues(method, result).Observe(d.Seconds())
}

// RunFinished sets the last-run gauge for a version.
func RunFinished(version string, passed bool) {
	if !enabled {
		return
	}
	v := 0.0
	if passed {
		v = 1
	}
	lastRunPassed.WithLabelValues(version).Set(v)
}

// RunRecorded records a run persistence attempt.
func RunRecorded(status string) {
	if !enabled {
		return
	}
	runsRecordedTotal.WithLabelValues(status).Inc()
}
