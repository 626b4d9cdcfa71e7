package client

import "math/rand/v2"

var nameAdjectives = []string{
	"Sunny", "Salty", "Crispy", "Sleepy", "Brave", "Lucky",
	"Spicy", "Tender", "Roaming", "Quiet", "Golden", "Stormy",
}

var nameCreatures = []string{
	"Octopus", "Squid", "Cuttlefish", "Flounder", "Urchin", "Anemone",
	"Mackerel", "Seabream", "Clam", "Shrimp", "Puffer", "Eel",
}

// RandomName returns a display name for owners who did not pick one.
func RandomName() string {
	return nameAdjectives[rand.IntN(len(nameAdjectives))] + " " +
		nameCreatures[rand.IntN(len(nameCreatures))]
}
