package crm

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/models"
)

func TestKeyUsesOrderID(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name  string
		event models.CRMEvent
		want  string
	}{
		{
			name:  "order event",
			event: models.CRMEvent{Type: models.CRMOrderCreated, Payload: map[string]interface{}{"orderId": id}},
			want:  id.String(),
		},
		{
			name:  "no order id",
			event: models.CRMEvent{Type: models.CRMPaymentCreated, Payload: map[string]interface{}{}},
			want:  models.CRMPaymentCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := key(tt.event); got != tt.want {
				t.Errorf("key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNoopTrack(t *testing.T) {
	var sink Noop
	if err := sink.Track(context.Background(), models.CRMEvent{Type: "x", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("Track() error = %v", err)
	}
}
