package ddl

import (
	"strings"
	"testing"

	"rideingest/internal/schema"
)

func TestStagingTablePostgres(t *testing.T) {
	t.Parallel()

	def, err := StagingTable(schema.RideBookings(), DialectPostgres, "public.stg_ride_bookings")
	if err != nil {
		t.Fatalf("StagingTable: %v", err)
	}

	sql, err := Render(def)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "public"."stg_ride_bookings"`,
		`"booking_id" TEXT`,
		`"booking_value" DOUBLE PRECISION`,
		`"booking_date" DATE NOT NULL`,
		`"booking_time" TIME NOT NULL`,
		`"cancelled_rides_by_customer" BIGINT`,
		`PRIMARY KEY ("booking_id")`,
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("generated SQL missing %q:\n%s", want, sql)
		}
	}

	// Optional columns carry no NOT NULL.
	if strings.Contains(sql, `"booking_value" DOUBLE PRECISION NOT NULL`) {
		t.Fatalf("optional column rendered NOT NULL:\n%s", sql)
	}
}

func TestStagingTableDeterministic(t *testing.T) {
	t.Parallel()

	c := schema.RideBookings()
	first, err := StagingTable(c, DialectSQLite, "stg")
	if err != nil {
		t.Fatalf("StagingTable: %v", err)
	}
	a, _ := Render(first)
	second, _ := StagingTable(c, DialectSQLite, "stg")
	b, _ := Render(second)
	if a != b {
		t.Fatalf("generation not deterministic")
	}
}

func TestRejectTable(t *testing.T) {
	t.Parallel()

	def, err := RejectTable(DialectPostgres, "public.stg_rejects")
	if err != nil {
		t.Fatalf("RejectTable: %v", err)
	}
	sql, err := Render(def)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{
		`"raw_record" JSONB`,
		`"reject_reason" TEXT`,
		`"rejected_at" TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP`,
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("reject DDL missing %q:\n%s", want, sql)
		}
	}
	if strings.Contains(sql, "PRIMARY KEY") {
		t.Fatalf("reject relation must be append-only without a key:\n%s", sql)
	}
}

func TestStagingTableErrors(t *testing.T) {
	t.Parallel()

	c := schema.RideBookings()
	if _, err := StagingTable(c, "oracle", "t"); err == nil {
		t.Fatalf("unknown dialect accepted")
	}
	if _, err := StagingTable(c, DialectPostgres, "  "); err == nil {
		t.Fatalf("empty table name accepted")
	}
	c.NaturalKey = ""
	if _, err := StagingTable(c, DialectPostgres, "t"); err == nil {
		t.Fatalf("broken contract accepted")
	}
}
