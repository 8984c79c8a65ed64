// Package seed заливает стартовый каталог товаров из CSV.
package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/service"
)

// Columns: title, description, category, residue, price
const fieldsPerRecord = 5

// Parse читает CSV без заголовка. Пустая категория означает "other".
func Parse(r io.Reader) ([]domain.Product, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fieldsPerRecord
	cr.LazyQuotes = true
	cr.Comment = '#'

	var out []domain.Product
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		p, err := parseRecord(rec)
		if err == nil {
			err = service.ValidateProduct(p)
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", line, err)
		}
		out = append(out, p)
	}
}

func parseRecord(rec []string) (domain.Product, error) {
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	if rec[0] == "" {
		return domain.Product{}, errors.New("empty title")
	}
	cat := domain.Category(rec[2])
	if cat == "" {
		cat = domain.CategoryOther
	}
	if !cat.Valid() {
		return domain.Product{}, fmt.Errorf("unknown category %q", rec[2])
	}
	residue, err := strconv.ParseInt(rec[3], 10, 64)
	if err != nil || residue < 0 {
		return domain.Product{}, fmt.Errorf("bad residue %q", rec[3])
	}
	price, err := decimal.NewFromString(rec[4])
	if err != nil || price.IsNegative() {
		return domain.Product{}, fmt.Errorf("bad price %q", rec[4])
	}
	return domain.Product{
		Title:       rec[0],
		Description: rec[1],
		Category:    cat,
		Residue:     residue,
		Price:       price,
	}, nil
}

// Load вставляет товары одной транзакцией; при ошибке не остаётся ничего.
func Load(ctx context.Context, db *sqlx.DB, products []domain.Product) (int, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	query := db.Rebind(`
		insert into products(title, title_search, description, category, residue, price)
		values (?, ?, ?, ?, ?, ?)
	`)
	for i, p := range products {
		_, err = tx.ExecContext(ctx, query,
			p.Title, strings.ToLower(p.Title), p.Description, string(p.Category), p.Residue, p.Price.StringFixed(2))
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert %q (#%d): %w", p.Title, i+1, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(products), nil
}
