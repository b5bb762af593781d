package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rentals/internal/app/uow"
	domainlistings "rentals/internal/domain/listings"
	"rentals/internal/domain/shared/money"
)

type listingFixture struct {
	ID          string   `json:"id"`
	Host        string   `json:"host"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	City        string   `json:"city"`
	Country     string   `json:"country"`
	NightlyRate string   `json:"nightly_rate"`
	Currency    string   `json:"currency"`
	MaxGuests   int      `json:"max_guests"`
	Amenities   []string `json:"amenities"`
	Photos      []string `json:"photos"`
	Inactive    bool     `json:"inactive"`
}

// loadListingFixtures imports listings that are not stored yet. Invalid entries are logged and skipped.
func loadListingFixtures(ctx context.Context, factory uow.UoWFactory, path, currency string, logger *slog.Logger) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("listing fixtures file not found, skipping", "path", path)
			return 0, nil
		}
		return 0, fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("listing fixtures file empty", "path", path)
		return 0, nil
	}
	var fixtures []listingFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return 0, fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now().UTC()
	imported := 0
	for _, fx := range fixtures {
		listing, err := fx.toListing(currency, now)
		if err != nil {
			logger.Error("fixture invalid", "listing_id", fx.ID, "err", err)
			continue
		}
		stored, err := storeFixture(ctx, factory, listing)
		if err != nil {
			logger.Error("cannot store fixture listing", "listing_id", fx.ID, "err", err)
			continue
		}
		if stored {
			imported++
			logger.Info("listing fixture imported", "listing_id", listing.ID)
		}
	}
	return imported, nil
}

func (fx listingFixture) toListing(currency string, now time.Time) (*domainlistings.Listing, error) {
	if c := strings.TrimSpace(fx.Currency); c != "" {
		currency = c
	}
	rate, err := money.ParseDecimal(fx.NightlyRate, currency)
	if err != nil {
		return nil, err
	}
	return domainlistings.NewListing(domainlistings.CreateParams{
		ID:          domainlistings.ListingID(fx.ID),
		Host:        domainlistings.HostID(fx.Host),
		Title:       fx.Title,
		Description: fx.Description,
		City:        fx.City,
		Country:     fx.Country,
		NightlyRate: rate,
		MaxGuests:   fx.MaxGuests,
		Amenities:   fx.Amenities,
		Photos:      fx.Photos,
		Active:      !fx.Inactive,
		Now:         now,
	})
}

func storeFixture(ctx context.Context, factory uow.UoWFactory, listing *domainlistings.Listing) (bool, error) {
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return false, err
	}
	execCtx := uow.Bind(ctx, unit)
	if _, err := unit.Listings().ByID(execCtx, listing.ID); err == nil {
		_ = unit.Rollback(execCtx)
		return false, nil
	} else if !errors.Is(err, domainlistings.ErrNotFound) {
		_ = unit.Rollback(execCtx)
		return false, err
	}
	if err := unit.Listings().Save(execCtx, listing); err != nil {
		_ = unit.Rollback(execCtx)
		return false, err
	}
	listing.Drain()
	if err := unit.Commit(execCtx); err != nil {
		return false, err
	}
	return true, nil
}

func defaultListingFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "listings.json"),
		filepath.Join("..", "..", "data", "listings.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
