package forge

import (
	"fmt"
	"math/rand/v2"
)

var (
	maleFirstNames = []string{
		"James", "Robert", "Michael", "William", "David", "Thomas", "Daniel",
		"Matthew", "Andrew", "Joshua", "Nathan", "Henry", "Peter", "Luc",
		"Antoine", "Julien",
	}
	femaleFirstNames = []string{
		"Mary", "Jennifer", "Linda", "Elizabeth", "Susan", "Sarah", "Karen",
		"Emily", "Anna", "Rachel", "Claire", "Camille", "Margaux", "Sophie",
		"Amandine", "Juliette",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Miller", "Davis",
		"Wilson", "Anderson", "Taylor", "Moore", "Martin", "Lefebvre",
		"Moreau", "Fournier", "Girard", "Bonnet", "Dupont", "Lambert",
		"Rousseau", "Vincent", "Muller", "Leroy", "Roux",
	}
)

// Identity is the synthetic patient a generated study belongs to.
type Identity struct {
	Name      string // DICOM person-name form LAST^FIRST
	ID        string
	BirthDate string
	Sex       string
}

// newIdentity draws a deterministic patient from rng.
func newIdentity(rng *rand.Rand) Identity {
	sex := "M"
	first := maleFirstNames[rng.IntN(len(maleFirstNames))]
	if rng.IntN(2) == 0 {
		sex = "F"
		first = femaleFirstNames[rng.IntN(len(femaleFirstNames))]
	}
	last := lastNames[rng.IntN(len(lastNames))]

	year := 1940 + rng.IntN(70)
	month := 1 + rng.IntN(12)
	day := 1 + rng.IntN(28)

	return Identity{
		Name:      last + "^" + first,
		ID:        fmt.Sprintf("PID%06d", rng.IntN(1000000)),
		BirthDate: fmt.Sprintf("%04d%02d%02d", year, month, day),
		Sex:       sex,
	}
}
