package testutil

import (
	"github.com/roach88/botcsync/internal/entity"
)

// Washerwoman returns a fully populated townsfolk whose auxiliary fields
// have been fetched.
func Washerwoman() *entity.Entity {
	return &entity.Entity{
		ID:              "washerwoman",
		Name:            "Washerwoman",
		Edition:         "tb",
		Team:            "townsfolk",
		Ability:         "You start knowing that 1 of 2 players is a particular Townsfolk.",
		Flavor:          "Bloodstains on a dinner jacket? No, this is cooking sherry. How careless.",
		Image:           "icons/washerwoman.png",
		FirstNight:      33,
		Reminders:       []string{"Townsfolk", "Wrong"},
		RemindersGlobal: []string{},
		Fetched:         entity.FetchFlags(0).With(entity.Reminders).With(entity.Flavor),
	}
}

// Imp returns a demon with no reminders of its own.
func Imp() *entity.Entity {
	return &entity.Entity{
		ID:              "imp",
		Name:            "Imp",
		Edition:         "tb",
		Team:            "demon",
		Ability:         "Each night*, choose a player: they die. If you kill yourself this way, a Minion becomes the Imp.",
		Flavor:          "We must keep our wits sharp and our sword sharper.",
		Image:           "icons/imp.png",
		OtherNight:      24,
		Reminders:       []string{"Dead"},
		RemindersGlobal: []string{},
		Fetched:         entity.FetchFlags(0).With(entity.Reminders).With(entity.Flavor),
	}
}

// Spy and Magician carry a symmetric jinx.
func Spy() *entity.Entity {
	return &entity.Entity{
		ID:              "spy",
		Name:            "Spy",
		Edition:         "tb",
		Team:            "minion",
		Ability:         "Each night, you see the Grimoire. You might register as good & as a Townsfolk or Outsider, even if dead.",
		Flavor:          "Never trust a man who tells you he is honest.",
		OtherNight:      58,
		FirstNight:      49,
		Reminders:       []string{},
		RemindersGlobal: []string{},
		Jinxes:          []entity.Jinx{{ID: "magician", Reason: "When the Spy sees the Grimoire, the Demon and Magician's character tokens are removed."}},
		Fetched:         entity.FetchFlags(0).With(entity.Reminders).With(entity.Flavor),
	}
}

func Magician() *entity.Entity {
	return &entity.Entity{
		ID:              "magician",
		Name:            "Magician",
		Edition:         "snv",
		Team:            "townsfolk",
		Ability:         "The Demon thinks you are a Minion. Minions think you are a Demon.",
		Flavor:          "Ladies and gentlemen, I need a volunteer.",
		FirstNight:      5,
		Reminders:       []string{},
		RemindersGlobal: []string{},
		Jinxes:          []entity.Jinx{{ID: "spy", Reason: "When the Spy sees the Grimoire, the Demon and Magician's character tokens are removed."}},
		Fetched:         entity.FetchFlags(0).With(entity.Reminders).With(entity.Flavor),
	}
}

// Dataset returns the four fixture characters in canonical (edition, id)
// order.
func Dataset() []*entity.Entity {
	return []*entity.Entity{Magician(), Imp(), Spy(), Washerwoman()}
}

// Scraped strips auxiliary values and flags, the shape a fresh scrape hands
// to the orchestrator.
func Scraped(entities ...*entity.Entity) []*entity.Entity {
	out := make([]*entity.Entity, len(entities))
	for i, e := range entities {
		c := e.Clone()
		c.Reminders = nil
		c.RemindersGlobal = nil
		c.Flavor = ""
		c.Fetched = 0
		c.Normalize()
		out[i] = c
	}
	return out
}
