package generators

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// User is a synthetic cardholder record.
type User struct {
	UserID     string  `json:"user_id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	CardNumber string  `json:"card_number"`
	Country    string  `json:"country"`
	Address    Address `json:"address"`
}

// Address is a cardholder billing address.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

var (
	firstNames = []string{
		"Aisha", "Carlos", "Diego", "Elena", "Fatima", "George", "Hannah",
		"Ishaan", "Julia", "Kenji", "Lakshmi", "Marcus", "Nina", "Omar",
		"Priya", "Quinn", "Ravi", "Sofia", "Tomas", "Wei",
	}
	lastNames = []string{
		"Anderson", "Bhatt", "Chen", "Desai", "Evans", "Fernandez", "Gupta",
		"Haddad", "Iyer", "Johnson", "Kim", "Lopez", "Mehta", "Nguyen",
		"Okafor", "Patel", "Rodriguez", "Singh", "Tanaka", "Williams",
	}
	streetNames = []string{
		"Oak", "Maple", "Cedar", "Park", "Lake", "Hill", "River", "Church",
		"Main", "Market", "High", "Station",
	}
	cityNames = []string{
		"Springfield", "Riverton", "Lakewood", "Fairview", "Georgetown",
		"Clinton", "Madison", "Salem", "Ashland", "Milton",
	}
	// Network prefixes used to make synthetic PANs look plausible.
	networkPrefixes = map[string]string{
		"VISA":       "4",
		"MASTERCARD": "5",
		"AMEX":       "3",
		"RUPAY":      "6",
	}
)

// UserGenerator produces seeded synthetic cardholders.
type UserGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewUserGenerator creates a generator seeded for reproducibility.
func NewUserGenerator(seed int64) *UserGenerator {
	return &UserGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Generate produces one cardholder. Empty country picks one at random.
func (g *UserGenerator) Generate(country string) User {
	g.mu.Lock()
	defer g.mu.Unlock()

	if country == "" {
		country = pick(g.rng, "IN", "US", "SG")
	}

	first := firstNames[g.rng.Intn(len(firstNames))]
	last := lastNames[g.rng.Intn(len(lastNames))]
	city := cityNames[g.rng.Intn(len(cityNames))]

	return User{
		UserID: uuid.New().String(),
		Name:   first + " " + last,
		Email: fmt.Sprintf("%s.%s%d@example.com",
			strings.ToLower(first), strings.ToLower(last), g.rng.Intn(1000)),
		Phone:      fmt.Sprintf("+1-%03d-%03d-%04d", 200+g.rng.Intn(700), g.rng.Intn(1000), g.rng.Intn(10000)),
		CardNumber: g.cardNumberLocked(),
		Country:    country,
		Address: Address{
			Street:     fmt.Sprintf("%d %s St", 1+g.rng.Intn(9999), streetNames[g.rng.Intn(len(streetNames))]),
			City:       city,
			State:      pick(g.rng, "CA", "NY", "TX", "WA", "MA", "KA", "MH", "DL"),
			PostalCode: fmt.Sprintf("%05d", g.rng.Intn(100000)),
			Country:    country,
		},
	}
}

// GenerateBatch produces count cardholders.
func (g *UserGenerator) GenerateBatch(count int) []User {
	out := make([]User, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, g.Generate(""))
	}
	return out
}

var networkNames = []string{"VISA", "MASTERCARD", "AMEX", "RUPAY"}

func (g *UserGenerator) cardNumberLocked() string {
	prefix := networkPrefixes[networkNames[g.rng.Intn(len(networkNames))]]
	return fmt.Sprintf("%s%015d", prefix, g.rng.Int63n(1_000_000_000_000_000))
}
