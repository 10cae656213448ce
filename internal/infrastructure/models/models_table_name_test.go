package models

import "testing"

func TestTableNames(t *testing.T) {
	if got := (SuppressionRecord{}).TableName(); got != "suppression_records" {
		t.Fatalf("unexpected SuppressionRecord table name: %s", got)
	}
	if got := (ObituaryListing{}).TableName(); got != "obituary_listings" {
		t.Fatalf("unexpected ObituaryListing table name: %s", got)
	}
}
