package gaze

import (
	"errors"
	"testing"
)

func TestDecodeDetectionResult(t *testing.T) {
	raw := []byte(`{"type":"detection_result","focus_status":"distracted","session_stats":{"frames":42}}`)

	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	res, ok := msg.(*DetectionResult)
	if !ok {
		t.Fatalf("Expected *DetectionResult, got %T", msg)
	}
	if res.FocusStatus != StatusDistracted {
		t.Errorf("Expected focus_status distracted, got %s", res.FocusStatus)
	}
	if len(res.SessionStats) == 0 {
		t.Error("Expected session_stats to be preserved")
	}
}

func TestDecodeFocusLossNotification(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"focus_loss_notification","focus_status":"focus_lost"}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	note, ok := msg.(*FocusLossNotification)
	if !ok {
		t.Fatalf("Expected *FocusLossNotification, got %T", msg)
	}
	if note.FocusStatus != StatusFocusLost {
		t.Errorf("Expected focus_status focus_lost, got %s", note.FocusStatus)
	}
}

func TestDecodeGazeSample(t *testing.T) {
	raw := []byte(`{
		"type": "gaze",
		"timestamp": 1718000000.5,
		"gaze": {"h": 0.2, "v": -0.1},
		"attention": 0.85,
		"on_screen": true,
		"focus_analysis": {
			"status": "focused",
			"focus_score": 0.9,
			"attention_trend": "stable",
			"focus_loss_detected": false,
			"focus_loss_count": 0
		}
	}`)

	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	sample, ok := msg.(*GazeSample)
	if !ok {
		t.Fatalf("Expected *GazeSample, got %T", msg)
	}
	if sample.Gaze.H != 0.2 || sample.Gaze.V != -0.1 {
		t.Errorf("Expected gaze (0.2,-0.1), got (%v,%v)", sample.Gaze.H, sample.Gaze.V)
	}
	if !sample.OnScreen {
		t.Error("Expected on_screen true")
	}
	if sample.FocusAnalysis == nil || sample.FocusAnalysis.Status != StatusFocused {
		t.Errorf("Expected focus_analysis status focused, got %+v", sample.FocusAnalysis)
	}
}

func TestDecodeServiceStatus(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"status","is_monitoring":true}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	status, ok := msg.(*ServiceStatus)
	if !ok {
		t.Fatalf("Expected *ServiceStatus, got %T", msg)
	}
	if !status.IsMonitoring {
		t.Error("Expected is_monitoring true")
	}
}

func TestDecodeFocusAlert(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"focus_alert","alert_type":"focus_loss","data":{"focus_score":0.1}}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	alert, ok := msg.(*FocusAlert)
	if !ok {
		t.Fatalf("Expected *FocusAlert, got %T", msg)
	}
	if alert.AlertType != "focus_loss" {
		t.Errorf("Expected alert_type focus_loss, got %s", alert.AlertType)
	}
}

func TestDecodeErrorMessageBothShapes(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"error","message":"camera unavailable"}`))
	if err != nil {
		t.Fatalf("Failed to decode flat error: %v", err)
	}
	if got := msg.(*ServiceError).Text(); got != "camera unavailable" {
		t.Errorf("Expected flat message, got %q", got)
	}

	msg, err = Decode([]byte(`{"type":"error","data":{"message":"invalid frame"}}`))
	if err != nil {
		t.Fatalf("Failed to decode nested error: %v", err)
	}
	if got := msg.(*ServiceError).Text(); got != "invalid frame" {
		t.Errorf("Expected nested message, got %q", got)
	}
}

func TestDecodeUnknownTypeReturnsSentinel(t *testing.T) {
	_, err := Decode([]byte(`{"type":"telemetry","values":[1,2,3]}`))
	if err == nil {
		t.Fatal("Expected error for unknown message type")
	}
	if !errors.Is(err, ErrUnknownMessage) {
		t.Errorf("Expected ErrUnknownMessage, got %v", err)
	}
}

func TestDecodeMalformedFrame(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	if err == nil {
		t.Fatal("Expected error for malformed frame")
	}
	if errors.Is(err, ErrUnknownMessage) {
		t.Error("Expected a decode error, not ErrUnknownMessage")
	}
}

func TestFocusStatusDistracted(t *testing.T) {
	if !StatusDistracted.Distracted() || !StatusFocusLost.Distracted() {
		t.Error("Expected distracted and focus_lost to open an episode")
	}
	if StatusFocused.Distracted() || StatusWavering.Distracted() {
		t.Error("Expected focused and wavering not to open an episode")
	}
}
