package main

import (
	"strings"
	"time"
)

type User struct {
	ID       int    `json:"user_id"`
	Username string `json:"username"`
	Password string `json:"-"`
	FullName string `json:"fullName"`
}

type Expense struct {
	ID          int       `json:"expense_id"`
	UserID      int       `json:"user_id"`
	Title       string    `json:"title"`
	Amount      int       `json:"amount"`
	Category    string    `json:"category"`
	Notes       *string   `json:"notes"`
	DateCreated time.Time `json:"date_created"`
}

// Limits holds the per-category spending limits of a user. Expense
// categories are free-form; only these five are ever limited.
type Limits struct {
	Food     int `json:"food"`
	Travel   int `json:"travel"`
	Shopping int `json:"shopping"`
	Bills    int `json:"bills"`
	Other    int `json:"other"`
}

// For returns the limit for a category, matched case-insensitively.
// Categories outside the five limit fields have no limit.
func (l Limits) For(category string) int {
	switch strings.ToLower(category) {
	case "food":
		return l.Food
	case "travel":
		return l.Travel
	case "shopping":
		return l.Shopping
	case "bills":
		return l.Bills
	case "other":
		return l.Other
	default:
		return 0
	}
}

type Stats struct {
	Count   int     `json:"count"`
	Total   float64 `json:"total"`
	Minimum float64 `json:"minimum"`
	Maximum float64 `json:"maximum"`
	Average float64 `json:"average"`
}

type CategoryTotal struct {
	Category string `json:"category"`
	Total    int    `json:"total"`
}
