package notify

import (
	"context"
	"errors"
	"testing"
)

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	ctx := context.Background()

	_ = rec.Publish(ctx, "order:1", "order:updated", nil)
	_ = rec.Publish(ctx, "staff:kitchen", "order:new_items", nil)
	_ = rec.Publish(ctx, "order:1", "order:item_status", nil)

	got := rec.Events("order:1")
	if len(got) != 2 || got[0] != "order:updated" || got[1] != "order:item_status" {
		t.Errorf("Events() = %v", got)
	}

	boom := errors.New("down")
	rec.FailWith(boom)
	if err := rec.Publish(ctx, "order:1", "x", nil); !errors.Is(err, boom) {
		t.Errorf("Publish() error = %v, want %v", err, boom)
	}
	if len(rec.Messages()) != 3 {
		t.Errorf("failed publish was recorded")
	}

	rec.Reset()
	if len(rec.Messages()) != 0 {
		t.Error("Reset() kept messages")
	}
}

func TestFanout(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("broker down")

	tests := []struct {
		name    string
		failing bool
		wantErr bool
	}{
		{"all deliver", false, false},
		{"one fails", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := &Recorder{}, &Recorder{}
			if tt.failing {
				b.FailWith(boom)
			}

			err := Fanout{a, b}.Publish(ctx, "table:4", "table:updated", map[string]string{"tableId": "4"})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Publish() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(a.Events("table:4")) != 1 {
				t.Error("healthy backend did not receive the message")
			}
		})
	}

	if err := (Fanout{}).Publish(ctx, "c", "e", nil); err != nil {
		t.Errorf("empty fanout error = %v", err)
	}
	if err := (Noop{}).Publish(ctx, "c", "e", nil); err != nil {
		t.Errorf("Noop error = %v", err)
	}
}
