package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

type Format int

const (
	Human Format = iota
	Plain
	JSON
)

// TimeLayout is used for both the check timestamp and the ETA so the two
// columns of verbose output line up.
const TimeLayout = "2006-01-02 15:04:05"

func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func WritePlainKV(w io.Writer, kv map[string]string) error {
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s=%s\n", k, kv[k]); err != nil {
			return err
		}
	}
	return nil
}

// FormatClock renders a duration as h:mm:ss with unpadded hours, e.g.
// 5400s becomes "1:30:00" and zero becomes "0:00:00". Negative durations
// render as zero.
func FormatClock(d time.Duration) string {
	s := int(d / time.Second)
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
}
