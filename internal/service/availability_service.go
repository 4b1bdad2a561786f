package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reservo/internal/database"
	"reservo/internal/domain"
	"reservo/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidRange     = errors.New("check-out must be after check-in")
	ErrInvalidRooms     = errors.New("rooms count must be at least 1")
	ErrRoomTypeNotFound = errors.New("room type not found")
)

type AvailabilityService struct {
	repo   domain.AvailabilityRepository
	logger *zerolog.Logger
}

func NewAvailabilityService(repo domain.AvailabilityRepository, logger *zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{
		repo:   repo,
		logger: logger,
	}
}

// CheckAvailability reports whether rooms rooms are free on every night of
// [checkIn, checkOut). AvailableRooms is the minimum over those nights.
func (s *AvailabilityService) CheckAvailability(
	ctx context.Context,
	propertyID, roomTypeID int64,
	checkIn, checkOut time.Time,
	rooms int,
) (*models.AvailabilityResult, error) {
	if !models.DateOf(checkOut).After(models.DateOf(checkIn)) {
		return nil, ErrInvalidRange
	}
	if rooms < 1 {
		return nil, ErrInvalidRooms
	}

	rt, err := s.roomType(ctx, propertyID, roomTypeID)
	if err != nil {
		return nil, err
	}

	days, err := s.calendar(ctx, rt, checkIn, checkOut)
	if err != nil {
		return nil, err
	}

	min := models.MinAvailable(rt.TotalRooms, days)
	return &models.AvailabilityResult{
		Available:      min >= rooms,
		AvailableRooms: min,
	}, nil
}

// GetAvailableDates returns per-day inventory for every day of the month.
func (s *AvailabilityService) GetAvailableDates(
	ctx context.Context,
	roomTypeID int64,
	year int,
	month time.Month,
) ([]models.DayAvailability, error) {
	if month < time.January || month > time.December {
		return nil, ErrInvalidRange
	}

	rt, err := s.roomType(ctx, 0, roomTypeID)
	if err != nil {
		return nil, err
	}

	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return s.calendar(ctx, rt, from, from.AddDate(0, 1, 0))
}

func (s *AvailabilityService) calendar(ctx context.Context, rt *models.RoomType, from, to time.Time) ([]models.DayAvailability, error) {
	bookings, err := s.repo.GetOccupyingBookings(ctx, rt.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load bookings for room type %d: %w", rt.ID, err)
	}
	return models.Calendar(rt.TotalRooms, bookings, from, to), nil
}

// roomType loads an active room type; propertyID zero skips the ownership check.
func (s *AvailabilityService) roomType(ctx context.Context, propertyID, id int64) (*models.RoomType, error) {
	rt, err := s.repo.GetRoomType(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrRoomTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	if !rt.IsActive || (propertyID != 0 && rt.PropertyID != propertyID) {
		return nil, ErrRoomTypeNotFound
	}
	return rt, nil
}
