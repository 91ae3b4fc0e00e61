package database

import "testing"

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		pass string
		want string
	}{
		{name: "with password", pass: "pw", want: "app:pw@tcp(db:3306)/ledger?charset=utf8mb4&parseTime=true&loc=UTC"},
		{name: "without password", pass: "", want: "app@tcp(db:3306)/ledger?charset=utf8mb4&parseTime=true&loc=UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN("app", tt.pass, "db", "3306", "ledger"); got != tt.want {
				t.Fatalf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}
