package repository

import (
    "reflect"
    "testing"

    "github.com/iliyamo/restaurant-storefront/internal/model"
)

func TestOrderNumber(t *testing.T) {
    cases := map[string]string{
        "3f2a9c1e-77b0-4d2e-9a51-0c6f3e8b2d10": "ORD-3F2A9C1E",
        "abc":                                  "ORD-ABC",
    }
    for id, want := range cases {
        if got := OrderNumber(id); got != want {
            t.Errorf("OrderNumber(%q) = %q, want %q", id, got, want)
        }
    }
}

func TestCustomerFilter(t *testing.T) {
    cases := []struct {
        name         string
        email, phone string
        where        string
        args         []any
        ok           bool
    }{
        {"both", "  Ana@Example.COM ", "5550001111", "customer_email = ? OR customer_phone = ?", []any{"ana@example.com", "5550001111"}, true},
        {"email only", "ana@example.com", "", "customer_email = ?", []any{"ana@example.com"}, true},
        {"phone only", "", " 5550001111 ", "customer_phone = ?", []any{"5550001111"}, true},
        {"none", " ", "", "", nil, false},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            where, args, ok := customerFilter(tc.email, tc.phone)
            if where != tc.where || ok != tc.ok || !reflect.DeepEqual(args, tc.args) {
                t.Fatalf("customerFilter = %q, %v, %v", where, args, ok)
            }
        })
    }
}

func TestOwnedBy(t *testing.T) {
    o := model.Order{CustomerEmail: "work@example.com", CustomerPhone: "5550001111"}
    cases := []struct {
        email, phone string
        want         bool
    }{
        {"ana@example.com", "5550001111", true},
        {"WORK@example.com", "", true},
        {"ana@example.com", "5550002222", false},
        {"", "", false},
    }
    for _, tc := range cases {
        if got := OwnedBy(o, tc.email, tc.phone); got != tc.want {
            t.Errorf("OwnedBy(%q, %q) = %v, want %v", tc.email, tc.phone, got, tc.want)
        }
    }
    if OwnedBy(model.Order{CustomerPhone: "5550001111"}, "", "") {
        t.Error("empty keys matched an order without email")
    }
}
