package printer

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const methodGetStatus = "PROTOCOL_METHOD_GET_STATUS"

// Form2Source speaks the printer's native control protocol: JSON payloads
// framed by a little-endian uint32 length prefix and eight zero terminator
// bytes, one TCP connection reused across polls.
type Form2Source struct {
	addr    string
	timeout time.Duration
	conn    net.Conn
}

type form2Request struct {
	Method  string `json:"Method"`
	ID      string `json:"Id"`
	Version int    `json:"Version"`
}

type form2Response struct {
	ID            string         `json:"Id"`
	Parameters    map[string]any `json:"Parameters"`
	ReplyToMethod string         `json:"ReplyToMethod"`
	Success       bool           `json:"Success"`
	Version       int            `json:"Version"`
}

func NewForm2Source(host string, port int, timeout time.Duration) *Form2Source {
	if port == 0 {
		port = 35
	}
	return &Form2Source{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: timeout,
	}
}

func (f *Form2Source) Fetch() (Status, error) {
	resp, err := f.call(methodGetStatus)
	if err != nil {
		return Status{}, err
	}
	printing, ok := resp.Parameters["isPrinting"].(bool)
	if !ok {
		return Status{}, fmt.Errorf("status parameters missing isPrinting field")
	}
	status := Status{
		State:    paramString(resp.Parameters, "status"),
		Printing: printing,
	}
	if status.Printing {
		status.RemainingSeconds = remainingSeconds(
			paramInt(resp.Parameters, "elapsedPrintTime_ms"),
			paramInt(resp.Parameters, "estimatedTotalPrintTime_ms"),
			paramInt(resp.Parameters, "estimatedPrintTimeRemaining_ms"),
		)
	}
	return status, nil
}

func (f *Form2Source) Close() {
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}

func (f *Form2Source) call(method string) (form2Response, error) {
	if f.conn == nil {
		conn, err := net.DialTimeout("tcp", f.addr, f.timeout)
		if err != nil {
			return form2Response{}, err
		}
		f.conn = conn
	}
	if f.timeout > 0 {
		if err := f.conn.SetDeadline(time.Now().Add(f.timeout)); err != nil {
			return form2Response{}, err
		}
	}

	// The printer echoes the request Id in its reply; a braced UUID is the
	// format the firmware expects.
	req := form2Request{
		Method:  method,
		ID:      "{" + uuid.New().String() + "}",
		Version: 1,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return form2Response{}, err
	}
	if err := writeFrame(f.conn, payload); err != nil {
		return form2Response{}, fmt.Errorf("send %s: %w", method, err)
	}

	data, err := readFrame(f.conn)
	if err != nil {
		return form2Response{}, fmt.Errorf("read %s reply: %w", method, err)
	}
	var resp form2Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return form2Response{}, fmt.Errorf("decode %s reply: %w", method, err)
	}
	if resp.ID != req.ID {
		return form2Response{}, fmt.Errorf("reply id %s does not match request id %s", resp.ID, req.ID)
	}
	return resp, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(payload)))
	if _, err := w.Write(size[:]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	var terminator [8]byte
	_, err := w.Write(terminator[:])
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.LittleEndian.Uint32(size[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	var terminator [8]byte
	if _, err := io.ReadFull(r, terminator[:]); err != nil {
		return nil, err
	}
	if !bytes.Equal(terminator[:], make([]byte, 8)) {
		return nil, fmt.Errorf("malformed frame terminator")
	}
	return payload, nil
}

func paramString(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func paramInt(params map[string]any, key string) int64 {
	switch v := params[key].(type) {
	case float64:
		return int64(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}
