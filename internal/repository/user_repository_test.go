package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestIsDuplicate(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if !isDuplicate(fmt.Errorf("insert: %w", dup)) {
		t.Fatalf("expected wrapped 1062 to be a duplicate")
	}
	if isDuplicate(&mysql.MySQLError{Number: 1146}) {
		t.Fatalf("missing table is not a duplicate")
	}
	if isDuplicate(errors.New("Error 1062")) {
		t.Fatalf("only driver errors are classified")
	}
}
