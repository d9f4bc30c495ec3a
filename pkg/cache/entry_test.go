package cache

import (
	"testing"
	"time"
)

func TestNewEntry(t *testing.T) {
	before := time.Now()
	entry := NewEntry([]byte(`{"chunk":[]}`), time.Minute)

	if string(entry.Data) != `{"chunk":[]}` {
		t.Errorf("Data = %s", entry.Data)
	}
	if entry.CachedAt.Before(before) {
		t.Errorf("CachedAt %v is before %v", entry.CachedAt, before)
	}
	if got := entry.Expires.Sub(entry.CachedAt); got != time.Minute {
		t.Errorf("Expires - CachedAt = %v, want 1m", got)
	}
}

func TestCacheEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{
			name:    "expired entry",
			expires: time.Now().Add(-1 * time.Hour),
			want:    true,
		},
		{
			name:    "valid entry",
			expires: time.Now().Add(1 * time.Hour),
			want:    false,
		},
		{
			name:    "just expired",
			expires: time.Now().Add(-1 * time.Second),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Expires: tt.expires}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_TTL(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		wantMin time.Duration
		wantMax time.Duration
	}{
		{
			name:    "one hour remaining",
			ttl:     time.Hour,
			wantMin: 59 * time.Minute,
			wantMax: time.Hour,
		},
		{
			name: "already expired",
			ttl:  -time.Hour,
		},
		{
			name:    "30 seconds remaining",
			ttl:     30 * time.Second,
			wantMin: 29 * time.Second,
			wantMax: 30 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewEntry(nil, tt.ttl).TTL()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("TTL() = %v, want between %v and %v", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}
