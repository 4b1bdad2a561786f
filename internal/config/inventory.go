package config

import (
	"fmt"
	"os"

	"reservo/internal/models"

	"gopkg.in/yaml.v2"
)

// Inventory is the seed catalogue of properties and room types.
type Inventory struct {
	Properties []*models.Property `yaml:"properties"`
	RoomTypes  []*models.RoomType `yaml:"room_types"`
}

// LoadInventory reads and validates the catalogue at path.
func LoadInventory(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parse inventory: %w", err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Validate checks ids and that every room type belongs to a listed property.
func (inv *Inventory) Validate() error {
	props := make(map[int64]bool, len(inv.Properties))
	for _, p := range inv.Properties {
		if p.ID <= 0 {
			return fmt.Errorf("property %q: id must be positive", p.Name)
		}
		if props[p.ID] {
			return fmt.Errorf("property %d listed twice", p.ID)
		}
		props[p.ID] = true
	}

	seen := make(map[int64]bool, len(inv.RoomTypes))
	for _, rt := range inv.RoomTypes {
		switch {
		case rt.ID <= 0:
			return fmt.Errorf("room type %q: id must be positive", rt.Name)
		case seen[rt.ID]:
			return fmt.Errorf("room type %d listed twice", rt.ID)
		case !props[rt.PropertyID]:
			return fmt.Errorf("room type %d: unknown property %d", rt.ID, rt.PropertyID)
		case rt.TotalRooms < 0:
			return fmt.Errorf("room type %d: total_rooms must not be negative", rt.ID)
		}
		seen[rt.ID] = true
	}
	return nil
}
