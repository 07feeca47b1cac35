package domain

// Job is one execution attempt grouping for one video — the queue entry.
type Job struct {
	ID       string
	VideoID  string
	Status   JobStatus
	Attempts int
	Error    *string
}

// MaxErrorLen bounds the truncated message persisted on failure (§7: "a
// truncated error string").
const MaxErrorLen = 2000

// TruncateError clips a failure message to MaxErrorLen, matching the
// gateway's fail_job contract.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorLen {
		return msg
	}
	return msg[:MaxErrorLen]
}
