// Package catalog loads the sample leaf plugins (moves, effects, abilities)
// and the rosters players pick from, declared in YAML.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/monarena/internal/services/arena/domain/battle"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// DefaultRosterKey names the rosters offered to players without their own.
const DefaultRosterKey = "default"

// ErrUnknownRoster indicates a roster index the player does not have.
var ErrUnknownRoster = errors.New("unknown roster")

// File is the YAML document layout.
type File struct {
	Types   []string               `yaml:"types"`
	Rules   Rules                  `yaml:"rules"`
	Moves   map[string]MoveSpec    `yaml:"moves"`
	Species map[string]SpeciesSpec `yaml:"species"`
	Rosters map[string][][]string  `yaml:"rosters"`
}

// Rules toggles the global effects a battle starts with.
type Rules struct {
	StaminaRegen bool `yaml:"stamina_regen"`
}

// MoveSpec declares one move.
type MoveSpec struct {
	Kind       string `yaml:"kind"` // strike | recover | ignite | withdraw
	Power      int32  `yaml:"power"`
	Stamina    int32  `yaml:"stamina"`
	Priority   *int   `yaml:"priority"`
	Amount     int32  `yaml:"amount"`
	BurnDamage int32  `yaml:"burn_damage"`
	BurnTurns  uint32 `yaml:"burn_turns"`
}

// SpeciesSpec declares one combatant template.
type SpeciesSpec struct {
	HP             uint32   `yaml:"hp"`
	Stamina        uint32   `yaml:"stamina"`
	Speed          uint32   `yaml:"speed"`
	Attack         uint32   `yaml:"attack"`
	Defense        uint32   `yaml:"defense"`
	SpecialAttack  uint32   `yaml:"special_attack"`
	SpecialDefense uint32   `yaml:"special_defense"`
	Types          []string `yaml:"types"`
	Moves          []string `yaml:"moves"`
	Ability        string   `yaml:"ability"`
}

// Catalog resolves rosters into roster slots and supplies the ruleset.
type Catalog struct {
	moves   map[string]battle.Move
	species map[string]battle.RosterSlot
	rosters map[string][][]string
	rules   Rules
}

var (
	_ battle.RosterSource = (*Catalog)(nil)
	_ battle.Ruleset      = (*Catalog)(nil)
)

// Default returns the embedded sample catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

// Parse decodes and checks a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return Build(f)
}

// Build turns a decoded document into plugins.
func Build(f File) (*Catalog, error) {
	c := &Catalog{
		moves:   make(map[string]battle.Move, len(f.Moves)),
		species: make(map[string]battle.RosterSlot, len(f.Species)),
		rosters: f.Rosters,
		rules:   f.Rules,
	}
	types := make(map[string]battle.Type, len(f.Types))
	for i, name := range f.Types {
		types[name] = battle.Type(i)
	}

	for name, spec := range f.Moves {
		m, err := buildMove(name, spec)
		if err != nil {
			return nil, err
		}
		c.moves[name] = m
	}

	for name, spec := range f.Species {
		slot, err := c.buildSpecies(name, spec, types)
		if err != nil {
			return nil, err
		}
		c.species[name] = slot
	}

	for owner, list := range f.Rosters {
		for i, roster := range list {
			if len(roster) == 0 || len(roster) > battle.MaxTeamSize {
				return nil, fmt.Errorf("roster %s/%d has %d mons, want 1..%d", owner, i, len(roster), battle.MaxTeamSize)
			}
			for _, name := range roster {
				if _, ok := c.species[name]; !ok {
					return nil, fmt.Errorf("roster %s/%d: unknown species %q", owner, i, name)
				}
			}
		}
	}
	return c, nil
}

func buildMove(name string, spec MoveSpec) (battle.Move, error) {
	prio := battle.DefaultPriority
	if spec.Priority != nil {
		prio = *spec.Priority
	}
	base := moveBase{name: name, priority: prio, stamina: spec.Stamina}
	switch spec.Kind {
	case "strike":
		if spec.Power <= 0 {
			return nil, fmt.Errorf("move %s: power must be positive", name)
		}
		return Strike{moveBase: base, Power: spec.Power}, nil
	case "recover":
		if spec.Amount <= 0 {
			return nil, fmt.Errorf("move %s: amount must be positive", name)
		}
		return Recover{moveBase: base, Amount: spec.Amount}, nil
	case "ignite":
		if spec.BurnTurns == 0 || spec.BurnDamage <= 0 {
			return nil, fmt.Errorf("move %s: burn needs turns and damage", name)
		}
		return Ignite{moveBase: base, Power: spec.Power, Burn: BurnData(spec.BurnDamage, spec.BurnTurns)}, nil
	case "withdraw":
		return Withdraw{moveBase: base}, nil
	default:
		return nil, fmt.Errorf("move %s: unknown kind %q", name, spec.Kind)
	}
}

func (c *Catalog) buildSpecies(name string, spec SpeciesSpec, types map[string]battle.Type) (battle.RosterSlot, error) {
	if spec.HP == 0 {
		return battle.RosterSlot{}, fmt.Errorf("species %s: hp must be positive", name)
	}
	if len(spec.Moves) > battle.MovesPerMon {
		return battle.RosterSlot{}, fmt.Errorf("species %s: %d moves, max %d", name, len(spec.Moves), battle.MovesPerMon)
	}
	if len(spec.Types) > 2 {
		return battle.RosterSlot{}, fmt.Errorf("species %s: at most two types", name)
	}
	slot := battle.RosterSlot{
		Name: name,
		Stats: battle.Stats{
			HP:             spec.HP,
			Stamina:        spec.Stamina,
			Speed:          spec.Speed,
			Attack:         spec.Attack,
			Defense:        spec.Defense,
			SpecialAttack:  spec.SpecialAttack,
			SpecialDefense: spec.SpecialDefense,
		},
	}
	for i, tn := range spec.Types {
		t, ok := types[tn]
		if !ok {
			return battle.RosterSlot{}, fmt.Errorf("species %s: unknown type %q", name, tn)
		}
		if i == 0 {
			slot.Stats.Type1 = t
		} else {
			slot.Stats.Type2 = t
		}
	}
	for _, mn := range spec.Moves {
		m, ok := c.moves[mn]
		if !ok {
			return battle.RosterSlot{}, fmt.Errorf("species %s: unknown move %q", name, mn)
		}
		slot.Moves = append(slot.Moves, m)
	}
	if spec.Ability != "" {
		ab, ok := abilities[spec.Ability]
		if !ok {
			return battle.RosterSlot{}, fmt.Errorf("species %s: unknown ability %q", name, spec.Ability)
		}
		slot.Ability = ab
	}
	return slot, nil
}

// Roster implements battle.RosterSource. Players without their own rosters
// pick from the default list.
func (c *Catalog) Roster(player string, index int) ([]battle.RosterSlot, error) {
	list, ok := c.rosters[player]
	if !ok {
		list = c.rosters[DefaultRosterKey]
	}
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("%w: %s/%d", ErrUnknownRoster, player, index)
	}
	out := make([]battle.RosterSlot, 0, len(list[index]))
	for _, name := range list[index] {
		slot := c.species[name]
		slot.Moves = append([]battle.Move(nil), slot.Moves...)
		out = append(out, slot)
	}
	return out, nil
}

// Rosters returns the number of rosters available to player.
func (c *Catalog) Rosters(player string) int {
	if list, ok := c.rosters[player]; ok {
		return len(list)
	}
	return len(c.rosters[DefaultRosterKey])
}

// GlobalEffects implements battle.Ruleset.
func (c *Catalog) GlobalEffects() []battle.EffectSpec {
	if !c.rules.StaminaRegen {
		return nil
	}
	return []battle.EffectSpec{{Effect: StaminaRegen{}}}
}

// Move returns a move by name.
func (c *Catalog) Move(name string) (battle.Move, bool) {
	m, ok := c.moves[name]
	return m, ok
}

// SpeciesNames lists the declared species in name order.
func (c *Catalog) SpeciesNames() []string {
	names := make([]string, 0, len(c.species))
	for name := range c.species {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
