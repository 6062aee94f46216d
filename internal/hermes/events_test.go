package hermes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRetrainRequestedParsing(t *testing.T) {
	raw := `{
		"event_id": "b7a1c1f2-0000-4000-8000-000000000001",
		"triggered_at": "2025-10-04T12:00:00Z",
		"new_records": 3,
		"total_records": 41,
		"reason": "new_data_detected"
	}`

	var ev RetrainRequested
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("failed to parse RetrainRequested: %v", err)
	}
	if ev.NewRecords != 3 {
		t.Errorf("expected new_records 3, got %d", ev.NewRecords)
	}
	if ev.TotalRecords != 41 {
		t.Errorf("expected total_records 41, got %d", ev.TotalRecords)
	}
	if ev.Reason != "new_data_detected" {
		t.Errorf("expected reason 'new_data_detected', got '%s'", ev.Reason)
	}
	if !ev.TriggeredAt.Equal(time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected triggered_at %s", ev.TriggeredAt)
	}
}

func TestRecordStoredOmitsEmptyProjectID(t *testing.T) {
	data, err := json.Marshal(RecordStored{EventID: "x", DocFuente: "a.pdf", Validation: "OK"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var m map[string]any
	json.Unmarshal(data, &m)
	if _, ok := m["id_proyecto"]; ok {
		t.Error("expected id_proyecto to be omitted when zero")
	}
	if m["doc_fuente"] != "a.pdf" {
		t.Errorf("unexpected doc_fuente %v", m["doc_fuente"])
	}
}

func TestNewEventID(t *testing.T) {
	id := NewEventID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("expected uuid, got %q", id)
	}
	if id == NewEventID() {
		t.Error("expected distinct ids")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(SubjectRecordStored, RecordStored{}); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
