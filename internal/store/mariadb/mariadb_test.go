package mariadb

import "testing"

func TestNewPool_InvalidDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
	}{
		{name: "empty", dsn: ""},
		// The mysql driver rejects a DSN without the slash before the
		// database name at open time, no connection attempt needed.
		{name: "malformed", dsn: "not-a-dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, err := NewPool(tt.dsn)
			if err == nil {
				pool.Close()
				t.Fatal("expected an error, got a pool")
			}
		})
	}
}
