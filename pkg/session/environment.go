package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Experience is the table's familiarity with Similo.
type Experience string

const (
	ExperienceUnknown     Experience = ""
	ExperienceBeginner    Experience = "beginner"
	ExperienceExperienced Experience = "experienced"
	ExperienceExpert      Experience = "expert"
)

// Materials describes what the table has to play with.
type Materials string

const (
	MaterialsUnknown    Materials = ""
	MaterialsAvailable  Materials = "available"
	MaterialsMissing    Materials = "missing"
	MaterialsSubstitute Materials = "substitute"
)

// Environment holds the facts sensed about the physical table.
// Zero values mean "not yet known".
type Environment struct {
	PlayerCount int        `json:"player_count,omitempty"`
	Experience  Experience `json:"experience_level,omitempty"`
	Materials   Materials  `json:"materials,omitempty"`
}

// EnvironmentUpdate records one sensed-fact change for the audit log.
// OldValue is empty when the field was previously unknown.
type EnvironmentUpdate struct {
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Timestamp time.Time `json:"timestamp"`
}

// Apply merges newly sensed facts. Updates are monotonic: an unknown field
// in found never clears a known value. It returns one record per field
// that actually changed.
func (e *Environment) Apply(found Environment) []EnvironmentUpdate {
	now := time.Now().UTC()
	var updates []EnvironmentUpdate

	if found.PlayerCount > 0 && found.PlayerCount != e.PlayerCount {
		old := ""
		if e.PlayerCount > 0 {
			old = strconv.Itoa(e.PlayerCount)
		}
		updates = append(updates, EnvironmentUpdate{
			Field:     "player_count",
			OldValue:  old,
			NewValue:  strconv.Itoa(found.PlayerCount),
			Timestamp: now,
		})
		e.PlayerCount = found.PlayerCount
	}
	if found.Experience != ExperienceUnknown && found.Experience != e.Experience {
		updates = append(updates, EnvironmentUpdate{
			Field:     "experience_level",
			OldValue:  string(e.Experience),
			NewValue:  string(found.Experience),
			Timestamp: now,
		})
		e.Experience = found.Experience
	}
	if found.Materials != MaterialsUnknown && found.Materials != e.Materials {
		updates = append(updates, EnvironmentUpdate{
			Field:     "materials",
			OldValue:  string(e.Materials),
			NewValue:  string(found.Materials),
			Timestamp: now,
		})
		e.Materials = found.Materials
	}
	return updates
}

// MissingFields lists the facts still unknown, in sensing priority order.
func (e Environment) MissingFields() []string {
	missing := []string{}
	if e.PlayerCount == 0 {
		missing = append(missing, "player_count")
	}
	if e.Experience == ExperienceUnknown {
		missing = append(missing, "experience_level")
	}
	if e.Materials == MaterialsUnknown {
		missing = append(missing, "materials_check")
	}
	return missing
}

func (e Environment) Complete() bool {
	return len(e.MissingFields()) == 0
}

// Summary renders the known facts for prompts; unknown fields are skipped.
func (e Environment) Summary() string {
	parts := []string{}
	if e.PlayerCount > 0 {
		parts = append(parts, fmt.Sprintf("玩家人數=%d", e.PlayerCount))
	}
	if e.Experience != ExperienceUnknown {
		parts = append(parts, "經驗="+string(e.Experience))
	}
	if e.Materials != MaterialsUnknown {
		parts = append(parts, "卡牌="+string(e.Materials))
	}
	if len(parts) == 0 {
		return "尚無環境資訊"
	}
	return strings.Join(parts, " ")
}
