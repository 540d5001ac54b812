// Package biome описывает типы биомов, хранимые в каждой точке мира.
package biome

import (
	"fmt"
	"math"
	"strings"
)

// BiomeType представляет тип биома
type BiomeType uint8

const (
	Plains BiomeType = iota
	Desert
	Forest
	Mountains
	Water
	DeepWater

	// Absent означает, что вид не хранит биом в этой точке
	Absent BiomeType = math.MaxUint8
)

var names = [...]string{
	Plains:    "plains",
	Desert:    "desert",
	Forest:    "forest",
	Mountains: "mountains",
	Water:     "water",
	DeepWater: "deep_water",
}

// String реализует fmt.Stringer
func (b BiomeType) String() string {
	if b == Absent {
		return "absent"
	}
	if int(b) < len(names) {
		return names[b]
	}
	return fmt.Sprintf("biome#%d", b)
}

// Valid проверяет, что значение является известным биомом
func (b BiomeType) Valid() bool {
	return int(b) < len(names)
}

// Parse разбирает имя биома без учёта регистра
func Parse(s string) (BiomeType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range names {
		if name == s {
			return BiomeType(i), nil
		}
	}
	return Absent, fmt.Errorf("unknown biome %q", s)
}
