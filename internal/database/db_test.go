package database

import (
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestDSNRoundTrip(t *testing.T) {
	dsn := Options{User: "shop", Pass: "p@ss:word", Host: "db", Port: "3306", Name: "storefront"}.DSN()

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	if cfg.User != "shop" || cfg.Passwd != "p@ss:word" || cfg.Addr != "db:3306" || cfg.DBName != "storefront" {
		t.Fatalf("parsed = %+v", cfg)
	}
	if !cfg.ParseTime || cfg.Loc.String() != "UTC" {
		t.Fatalf("ParseTime=%v Loc=%v", cfg.ParseTime, cfg.Loc)
	}
}

func TestSplitStatements(t *testing.T) {
	src := `-- header
CREATE TABLE a (
    id INT
);

-- second
CREATE TABLE b (id INT);
`
	got := splitStatements(src)
	if len(got) != 2 {
		t.Fatalf("got %d statements: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "CREATE TABLE a") || strings.HasSuffix(got[0], ";") {
		t.Fatalf("first = %q", got[0])
	}
	if got[1] != "CREATE TABLE b (id INT)" {
		t.Fatalf("second = %q", got[1])
	}
}

func TestBundledSchemaCoversTables(t *testing.T) {
	raw, err := schemaFS.ReadFile("schema/0001_storefront.sql")
	if err != nil {
		t.Fatal(err)
	}
	stmts := splitStatements(string(raw))
	for _, table := range []string{"categories", "menu_items", "deals", "orders", "order_status_history", "session_slots"} {
		found := false
		for _, s := range stmts {
			if strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS "+table+" ") {
				found = true
			}
		}
		if !found {
			t.Errorf("no CREATE TABLE for %s", table)
		}
	}
}
