package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusLead, StatusInquiry, true},
		{StatusLead, StatusBooked, true},
		{StatusLead, StatusCompleted, true},
		{StatusBooked, StatusCompleted, true},
		{StatusInquiry, StatusLead, false},
		{StatusCompleted, StatusBooked, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusCompleted, StatusCancelled, true},
		{StatusBooked, StatusCancelled, true},
		{StatusCancelled, StatusCancelled, false},
		{StatusCancelled, StatusLead, false},
		{StatusLead, Status("refunded"), false},
		{Status("unknown"), StatusBooked, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}
