package printer

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSource reads status from printers that publish their state over MQTT
// (BambuLab-style firmware): it subscribes to the device report topic,
// requests a full state push and interprets the accumulated report.
type MQTTSource struct {
	client       mqtt.Client
	commandTopic string
	timeout      time.Duration

	mu    sync.RWMutex
	data  map[string]any
	ready chan struct{}
}

func NewMQTTSource(host, accessCode, serial, username string, port int, timeout time.Duration) (*MQTTSource, error) {
	if username == "" {
		username = "bblp"
	}
	if port == 0 {
		port = 8883
	}

	ms := &MQTTSource{
		commandTopic: fmt.Sprintf("device/%s/request", serial),
		timeout:      timeout,
		data:         map[string]any{},
		ready:        make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tls://%s:%d", host, port))
	opts.SetUsername(username)
	opts.SetPassword(accessCode)
	opts.SetClientID(fmt.Sprintf("form2idle-%d", time.Now().UnixNano()))
	opts.SetConnectTimeout(timeout)
	opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: true})
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		topic := fmt.Sprintf("device/%s/report", serial)
		if token := c.Subscribe(topic, 0, ms.onMessage); token.Wait() && token.Error() != nil {
			return
		}
	})
	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {})

	ms.client = mqtt.NewClient(opts)
	if token := ms.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return ms, nil
}

func (m *MQTTSource) Fetch() (Status, error) {
	if err := m.pushAll(); err != nil {
		return Status{}, err
	}
	if err := m.waitForData(); err != nil {
		return Status{}, err
	}
	return statusFromReport(m.snapshot())
}

func (m *MQTTSource) Close() {
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
}

// statusFromReport maps an accumulated report document to a Status.
// gcode_state carries the job phase; mc_remaining_time is in minutes.
func statusFromReport(report map[string]any) (Status, error) {
	section, ok := report["print"].(map[string]any)
	if !ok {
		return Status{}, errors.New("report has no print section")
	}
	state, ok := section["gcode_state"].(string)
	if !ok {
		return Status{}, errors.New("report missing gcode_state")
	}

	status := Status{State: state}
	switch state {
	case "RUNNING", "PREPARE", "PAUSE":
		status.Printing = true
	case "IDLE", "FINISH", "FAILED":
		status.Printing = false
	default:
		return Status{}, fmt.Errorf("unknown gcode_state %q", state)
	}
	if status.Printing {
		if minutes, ok := reportInt(section["mc_remaining_time"]); ok {
			status.RemainingSeconds = remainingSeconds(0, 0, minutes*60*1000)
		}
	}
	return status, nil
}

func reportInt(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func (m *MQTTSource) onMessage(_ mqtt.Client, msg mqtt.Message) {
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(msg.Payload()))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return
	}

	m.mu.Lock()
	for k, v := range doc {
		existing, ok := m.data[k]
		vMap, okV := v.(map[string]any)
		if ok && okV {
			existingMap, okExisting := existing.(map[string]any)
			if okExisting {
				for kk, vv := range vMap {
					existingMap[kk] = vv
				}
				m.data[k] = existingMap
				continue
			}
		}
		m.data[k] = v
	}
	m.mu.Unlock()

	select {
	case <-m.ready:
	default:
		close(m.ready)
	}
}

func (m *MQTTSource) waitForData() error {
	timeout := m.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-m.ready:
		return nil
	case <-time.After(timeout):
		return errors.New("timeout waiting for printer data")
	}
}

func (m *MQTTSource) pushAll() error {
	if m.client == nil || !m.client.IsConnected() {
		return errors.New("mqtt not connected")
	}
	b, err := json.Marshal(map[string]any{"pushing": map[string]any{"command": "pushall"}})
	if err != nil {
		return err
	}
	ok := m.client.Publish(m.commandTopic, 0, false, b)
	if !ok.WaitTimeout(5 * time.Second) {
		return errors.New("mqtt publish timeout")
	}
	return ok.Error()
}

func (m *MQTTSource) snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]any{}
	for k, v := range m.data {
		out[k] = v
	}
	return out
}
