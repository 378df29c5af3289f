// Package catalog is the read-only lookup table of locations and their role
// sets. Rounds pick from it; nothing in the game ever writes to it.
package catalog

import (
	"fmt"
	"math/rand"

	"github.com/Greenrenge/cf-boardgames-sub000/internal/model"
)

// Difficulty buckets locations for game-type selection.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
)

// Location is one playable place with its role set.
type Location struct {
	ID         string
	Name       string
	Difficulty Difficulty
	Roles      []string
}

// Selected converts a catalog entry into the round snapshot shape.
func (l Location) Selected() model.SelectedLocation {
	roles := make([]model.RoleInfo, len(l.Roles))
	for i, r := range l.Roles {
		roles[i] = model.RoleInfo{ID: roleID(l.ID, i), Name: r}
	}
	return model.SelectedLocation{ID: l.ID, Name: l.Name, Roles: roles}
}

func roleID(locID string, idx int) string {
	return fmt.Sprintf("%s-r%d", locID, idx)
}

var locations = []Location{
	{ID: "airplane", Name: "Airplane", Difficulty: Easy, Roles: []string{
		"Pilot", "Flight Attendant", "Air Marshal", "First Class Passenger", "Economy Passenger", "Mechanic", "Co-Pilot"}},
	{ID: "bank", Name: "Bank", Difficulty: Easy, Roles: []string{
		"Teller", "Manager", "Security Guard", "Customer", "Robber", "Consultant", "Armored Car Driver"}},
	{ID: "beach", Name: "Beach", Difficulty: Easy, Roles: []string{
		"Lifeguard", "Surfer", "Ice Cream Vendor", "Tourist", "Photographer", "Beach Volleyball Player", "Kite Flyer"}},
	{ID: "casino", Name: "Casino", Difficulty: Easy, Roles: []string{
		"Dealer", "Bouncer", "Gambler", "Bartender", "Pit Boss", "Card Counter", "Cocktail Waitress"}},
	{ID: "circus", Name: "Circus", Difficulty: Easy, Roles: []string{
		"Acrobat", "Clown", "Ringmaster", "Lion Tamer", "Juggler", "Visitor", "Fire Eater"}},
	{ID: "hospital", Name: "Hospital", Difficulty: Easy, Roles: []string{
		"Doctor", "Nurse", "Surgeon", "Patient", "Anesthesiologist", "Intern", "Therapist"}},
	{ID: "hotel", Name: "Hotel", Difficulty: Easy, Roles: []string{
		"Doorman", "Receptionist", "Housekeeper", "Guest", "Bartender", "Manager", "Bellhop"}},
	{ID: "movie-studio", Name: "Movie Studio", Difficulty: Easy, Roles: []string{
		"Director", "Actor", "Camera Operator", "Stunt Double", "Costume Designer", "Sound Engineer", "Producer"}},
	{ID: "ocean-liner", Name: "Ocean Liner", Difficulty: Easy, Roles: []string{
		"Captain", "Rich Passenger", "Cook", "Waiter", "Musician", "Mechanic", "Radio Operator"}},
	{ID: "restaurant", Name: "Restaurant", Difficulty: Easy, Roles: []string{
		"Chef", "Waiter", "Food Critic", "Customer", "Musician", "Host", "Dishwasher"}},
	{ID: "school", Name: "School", Difficulty: Easy, Roles: []string{
		"Teacher", "Principal", "Student", "Janitor", "Lunch Lady", "Gym Teacher", "Security Guard"}},
	{ID: "supermarket", Name: "Supermarket", Difficulty: Easy, Roles: []string{
		"Cashier", "Butcher", "Customer", "Janitor", "Security Guard", "Shelf Stocker", "Food Sampler"}},
	{ID: "crusader-army", Name: "Crusader Army", Difficulty: Medium, Roles: []string{
		"Knight", "Archer", "Monk", "Servant", "Bishop", "Squire", "Prisoner"}},
	{ID: "embassy", Name: "Embassy", Difficulty: Medium, Roles: []string{
		"Ambassador", "Secretary", "Security Guard", "Refugee", "Diplomat", "Tourist", "Government Official"}},
	{ID: "military-base", Name: "Military Base", Difficulty: Medium, Roles: []string{
		"Colonel", "Medic", "Soldier", "Sniper", "Officer", "Deserter", "Engineer"}},
	{ID: "pirate-ship", Name: "Pirate Ship", Difficulty: Medium, Roles: []string{
		"Captain", "Cabin Boy", "Cook", "Slave", "Cannoneer", "Sailor", "Prisoner"}},
	{ID: "polar-station", Name: "Polar Station", Difficulty: Medium, Roles: []string{
		"Meteorologist", "Expedition Leader", "Biologist", "Radio Operator", "Hydrologist", "Geologist", "Medic"}},
	{ID: "space-station", Name: "Space Station", Difficulty: Medium, Roles: []string{
		"Commander", "Engineer", "Scientist", "Doctor", "Space Tourist", "Pilot", "Alien"}},
	{ID: "submarine", Name: "Submarine", Difficulty: Medium, Roles: []string{
		"Captain", "Navigator", "Sonar Technician", "Cook", "Electrician", "Radio Operator", "Sailor"}},
	{ID: "theater", Name: "Theater", Difficulty: Medium, Roles: []string{
		"Actor", "Director", "Prompter", "Stagehand", "Audience Member", "Usher", "Playwright"}},
	{ID: "university", Name: "University", Difficulty: Medium, Roles: []string{
		"Professor", "Dean", "Student", "Janitor", "Psychologist", "Graduate Assistant", "Librarian"}},
}

var byID = func() map[string]Location {
	m := make(map[string]Location, len(locations))
	for _, l := range locations {
		m[l.ID] = l
	}
	return m
}()

// Get looks up a location by id.
func Get(id string) (Location, bool) {
	l, ok := byID[id]
	return l, ok
}

// GetLocations returns the locations for the given ids, skipping unknown
// ids. With no ids it returns the full catalog.
func GetLocations(ids ...string) []Location {
	if len(ids) == 0 {
		out := make([]Location, len(locations))
		copy(out, locations)
		return out
	}
	out := make([]Location, 0, len(ids))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Names returns every location name, for the spy's candidate list.
func Names() []string {
	names := make([]string, len(locations))
	for i, l := range locations {
		names[i] = l.Name
	}
	return names
}

// Random picks one location. An empty difficulty draws from the whole
// catalog.
func Random(rng *rand.Rand, difficulty Difficulty) Location {
	pool := locations
	if difficulty != "" {
		pool = nil
		for _, l := range locations {
			if l.Difficulty == difficulty {
				pool = append(pool, l)
			}
		}
		if len(pool) == 0 {
			pool = locations
		}
	}
	return pool[rng.Intn(len(pool))]
}
