package core

import (
	"errors"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: MaxAmountCents}).Validate(); err != nil {
		t.Fatalf("cap itself is allowed, got %v", err)
	}
	if err := (Money{Cents: MaxAmountCents + 1}).Validate(); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{Date: NewDate(2025, 1, 1), Description: "ok", Amount: Money{Cents: 100}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Date: Date{Time: time.Time{}}, Description: "a", Amount: Money{Cents: 1}},
		{Date: NewDate(2025, 1, 1), Description: "  ", Amount: Money{Cents: 1}},
		{Date: NewDate(2025, 1, 1), Description: "a", Amount: Money{Cents: 0}},
		{Date: NewDate(2025, 1, 1), Description: "a", Amount: Money{Cents: -5}},
		{Date: NewDate(2025, 1, 1), Description: "a", Amount: Money{Cents: (1<<63 - 1) / 2}},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMonthKey(t *testing.T) {
	k := MonthOf(NewDate(2024, 2, 17))
	if k.String() != "2024-02" {
		t.Fatalf("String = %s", k.String())
	}
	if got := k.Last(); !got.Equal(NewDate(2024, 2, 29)) {
		t.Fatalf("Last = %s", got)
	}
	if k.Prev() != (MonthKey{Year: 2024, Month: time.January}) {
		t.Fatalf("Prev = %v", k.Prev())
	}
	if MonthOf(NewDate(2024, 12, 3)).Next() != (MonthKey{Year: 2025, Month: time.January}) {
		t.Fatalf("Next across year boundary")
	}
	parsed, err := ParseMonthKey("2024-02")
	if err != nil || parsed != k {
		t.Fatalf("ParseMonthKey = %v, %v", parsed, err)
	}
}

func TestDateRange(t *testing.T) {
	r := DateRange{From: NewDate(2025, 11, 28), To: NewDate(2026, 1, 2)}
	if !r.Contains(NewDate(2025, 11, 28)) || !r.Contains(NewDate(2026, 1, 2)) {
		t.Fatalf("range must be inclusive on both ends")
	}
	if r.Contains(NewDate(2026, 1, 3)) {
		t.Fatalf("day after range must not match")
	}
	months := r.Months()
	if len(months) != 3 || months[0].String() != "2025-11" || months[2].String() != "2026-01" {
		t.Fatalf("Months = %v", months)
	}
	if r.Days() != 36 {
		t.Fatalf("Days = %d", r.Days())
	}
}
