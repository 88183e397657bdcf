package printer

import "time"

// WaitIdle fetches the status repeatedly until the printer is idle,
// sleeping interval between checks. Each check invokes report with the
// local time the check started. There is no iteration bound; a busy
// printer keeps the loop alive until the process is killed. Fetch errors
// abort the loop immediately.
func WaitIdle(src Source, interval time.Duration, sleep func(time.Duration), report func(time.Time, Status)) (Status, error) {
	for {
		now := time.Now()
		status, err := src.Fetch()
		if err != nil {
			return Status{}, err
		}
		if report != nil {
			report(now, status)
		}
		if status.Idle() {
			return status, nil
		}
		sleep(interval)
	}
}
