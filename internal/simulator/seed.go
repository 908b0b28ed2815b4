package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// tenantFixture is one demo tenant.
type tenantFixture struct {
	id   string
	name string
}

var seedTenants = []tenantFixture{
	{id: "t-acme", name: "Acme Corp"},
	{id: "t-globex", name: "Globex"},
	{id: "t-initech", name: "Initech"},
	{id: "t-umbrella", name: "Umbrella"},
}

var seedUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36 Edg/125.0.0.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (iPad; CPU OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
}

// Seed loads a deterministic demo population into the store. The same seed
// always yields the same users, tenants and online split, which keeps
// end-to-end assertions stable. Returns the number of records written.
func Seed(ctx context.Context, store Store, seed int64, now time.Time, log *slog.Logger) (int, error) {
	users := []struct {
		id       string
		tenant   int
		email    string
		fullName string
	}{
		{id: "u-001", tenant: 0, email: "ada.lovelace@acme.example", fullName: "Ada Lovelace"},
		{id: "u-002", tenant: 0, email: "grace.hopper@acme.example", fullName: "Grace Hopper"},
		{id: "u-003", tenant: 0, email: "alan.turing@acme.example", fullName: "Alan Turing"},
		{id: "u-004", tenant: 0, email: "edsger.dijkstra@acme.example", fullName: "Edsger Dijkstra"},
		{id: "u-005", tenant: 0, email: "donald.knuth@acme.example", fullName: "Donald Knuth"},
		{id: "u-006", tenant: 1, email: "barbara.liskov@globex.example", fullName: "Barbara Liskov"},
		{id: "u-007", tenant: 1, email: "tony.hoare@globex.example", fullName: "Tony Hoare"},
		{id: "u-008", tenant: 1, email: "john.backus@globex.example", fullName: "John Backus"},
		{id: "u-009", tenant: 1, email: "frances.allen@globex.example", fullName: "Frances Allen"},
		{id: "u-010", tenant: 2, email: "ken.thompson@initech.example", fullName: "Ken Thompson"},
		{id: "u-011", tenant: 2, email: "dennis.ritchie@initech.example", fullName: "Dennis Ritchie"},
		{id: "u-012", tenant: 2, email: "rob.pike@initech.example", fullName: "Rob Pike"},
		{id: "u-013", tenant: 2, email: "russ.cox@initech.example", fullName: "Russ Cox"},
		{id: "u-014", tenant: 3, email: "margaret.hamilton@umbrella.example", fullName: "Margaret Hamilton"},
		{id: "u-015", tenant: 3, email: "katherine.johnson@umbrella.example", fullName: "Katherine Johnson"},
		{id: "u-016", tenant: 3, email: "radia.perlman@umbrella.example", fullName: "Radia Perlman"},
		{id: "u-017", tenant: 3, email: "leslie.lamport@umbrella.example", fullName: "Leslie Lamport"},
		{id: "u-018", tenant: 3, email: "lynn.conway@umbrella.example", fullName: "Lynn Conway"},
	}

	rng := rand.New(rand.NewSource(seed))
	written := 0

	for i, u := range users {
		tenant := seedTenants[u.tenant]

		// Roughly three quarters of the population starts online.
		online := rng.Float64() < 0.75
		idle := time.Duration(rng.Intn(10)) * time.Minute
		sessionLen := time.Duration(15+rng.Intn(90)) * time.Minute

		rec := &SessionRecord{
			UserID:       u.id,
			TenantID:     tenant.id,
			TenantName:   tenant.name,
			Email:        u.email,
			FullName:     u.fullName,
			IsOnline:     online,
			LastActivity: now.Add(-idle),
			UserAgent:    seedUserAgents[rng.Intn(len(seedUserAgents))],
			IPAddress:    seedIP(i),
		}
		if online {
			rec.SessionID = uuid.NewString()
			rec.ConnectedAt = rec.LastActivity.Add(-sessionLen)
		} else {
			// Offline users went quiet a while ago.
			rec.LastActivity = now.Add(-idle - time.Duration(30+rng.Intn(60))*time.Minute)
		}

		if err := store.Put(ctx, rec); err != nil {
			return written, fmt.Errorf("seed user %s: %w", u.id, err)
		}
		written++
	}

	log.InfoContext(ctx, "seeded demo population",
		"users", written,
		"tenants", len(seedTenants),
		"seed", seed)
	return written, nil
}

// seedIP hands out stable documentation-range addresses.
func seedIP(i int) string {
	if i%2 == 0 {
		return fmt.Sprintf("203.0.113.%d", 10+i)
	}
	return fmt.Sprintf("198.51.100.%d", 10+i)
}
