package storage

import "testing"

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultQueryLimit},
		{-5, DefaultQueryLimit},
		{50, 50},
		{MaxQueryLimit + 1, MaxQueryLimit},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
