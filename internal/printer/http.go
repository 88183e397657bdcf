package printer

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

const statusPath = "/api/v1/status"

// statusResponse is the fixed JSON document served by the printer's status
// endpoint. Time fields are milliseconds, firmware style. The remaining
// field is optional; when the firmware reports elapsed and total instead,
// the remainder is computed from those.
type statusResponse struct {
	Status      string `json:"status"`
	IsPrinting  *bool  `json:"isPrinting"`
	ElapsedMS   int64  `json:"elapsedPrintTime_ms"`
	TotalMS     int64  `json:"estimatedTotalPrintTime_ms"`
	RemainingMS int64  `json:"estimatedPrintTimeRemaining_ms"`
}

// HTTPSource polls the printer's HTTP status endpoint.
type HTTPSource struct {
	url    string
	client *http.Client
}

func NewHTTPSource(host string, port int, timeout time.Duration) *HTTPSource {
	if port == 0 {
		port = 80
	}
	return &HTTPSource{
		url: "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + statusPath,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (h *HTTPSource) Fetch() (Status, error) {
	resp, err := h.client.Get(h.url)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Status{}, fmt.Errorf("printer returned %s for %s", resp.Status, statusPath)
	}

	var doc statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return Status{}, fmt.Errorf("decode status response: %w", err)
	}
	return doc.toStatus()
}

func (h *HTTPSource) Close() {}

func (r statusResponse) toStatus() (Status, error) {
	if r.IsPrinting == nil {
		return Status{}, fmt.Errorf("status response missing isPrinting field")
	}
	status := Status{
		State:    r.Status,
		Printing: *r.IsPrinting,
	}
	if status.Printing {
		status.RemainingSeconds = remainingSeconds(r.ElapsedMS, r.TotalMS, r.RemainingMS)
	}
	return status, nil
}
