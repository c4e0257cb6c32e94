package domain

import "github.com/shopspring/decimal"

// RoundMoney rounds an amount to cents.
func RoundMoney(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// AddMoney adds amounts in decimal and rounds the result to cents.
func AddMoney(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(2).Float64()
	return f
}
