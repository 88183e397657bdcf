package printer

import (
	"bytes"
	"encoding/json"
	"net"
	"testing"
	"time"
)

// serveForm2 answers framed status requests on an ephemeral port. mangle, if
// set, rewrites the response before it is sent back.
func serveForm2(t *testing.T, params map[string]any, mangle func(*form2Response)) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			payload, err := readFrame(conn)
			if err != nil {
				return
			}
			var req form2Request
			if err := json.Unmarshal(payload, &req); err != nil {
				return
			}
			resp := form2Response{
				ID:            req.ID,
				Parameters:    params,
				ReplyToMethod: req.Method,
				Success:       true,
				Version:       1,
			}
			if mangle != nil {
				mangle(&resp)
			}
			b, err := json.Marshal(resp)
			if err != nil {
				return
			}
			if err := writeFrame(conn, b); err != nil {
				return
			}
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func TestForm2SourceFetch(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   Status
	}{
		{
			name:   "idle",
			params: map[string]any{"status": "IDLE", "isPrinting": false},
			want:   Status{State: "IDLE", Printing: false},
		},
		{
			name: "busy with direct remaining",
			params: map[string]any{
				"status":                         "PRINTING",
				"isPrinting":                     true,
				"estimatedPrintTimeRemaining_ms": float64(5400000),
			},
			want: Status{State: "PRINTING", Printing: true, RemainingSeconds: 5400},
		},
		{
			name: "busy with elapsed and total",
			params: map[string]any{
				"status":                     "PRINTING",
				"isPrinting":                 true,
				"elapsedPrintTime_ms":        float64(1800000),
				"estimatedTotalPrintTime_ms": float64(7200000),
			},
			want: Status{State: "PRINTING", Printing: true, RemainingSeconds: 5400},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := serveForm2(t, tt.params, nil)
			src := NewForm2Source("127.0.0.1", port, 2*time.Second)
			defer src.Close()

			got, err := src.Fetch()
			if err != nil {
				t.Fatalf("Fetch returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Fetch() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestForm2SourceFetch_ReusesConnection(t *testing.T) {
	port := serveForm2(t, map[string]any{"isPrinting": false}, nil)
	src := NewForm2Source("127.0.0.1", port, 2*time.Second)
	defer src.Close()

	for i := 0; i < 3; i++ {
		if _, err := src.Fetch(); err != nil {
			t.Fatalf("Fetch %d returned error: %v", i, err)
		}
	}
}

func TestForm2SourceFetch_IDMismatch(t *testing.T) {
	port := serveForm2(t, map[string]any{"isPrinting": false}, func(r *form2Response) {
		r.ID = "{00000000-0000-0000-0000-000000000000}"
	})
	src := NewForm2Source("127.0.0.1", port, 2*time.Second)
	defer src.Close()

	if _, err := src.Fetch(); err == nil {
		t.Fatal("Fetch with mismatched reply id returned nil error")
	}
}

func TestForm2SourceFetch_MissingIsPrinting(t *testing.T) {
	port := serveForm2(t, map[string]any{"status": "PRINTING"}, nil)
	src := NewForm2Source("127.0.0.1", port, 2*time.Second)
	defer src.Close()

	if _, err := src.Fetch(); err == nil {
		t.Fatal("Fetch without isPrinting returned nil error")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"Method":"PROTOCOL_METHOD_GET_STATUS"}`)
	if err := writeFrame(&buf, payload); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	got, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("readFrame() = %q, want %q", got, payload)
	}
}

func TestReadFrame_BadTerminator(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, []byte("{}")); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	b := buf.Bytes()
	b[len(b)-1] = 0xff
	if _, err := readFrame(bytes.NewReader(b)); err == nil {
		t.Fatal("readFrame with bad terminator returned nil error")
	}
}
