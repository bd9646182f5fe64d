// seed fills the local dev database with a demo roster: two departments,
// six accounts, a week of shifts and a draft schedule.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/rosterly/rosterd/internal/auth"
	"github.com/rosterly/rosterd/internal/domain"
	"github.com/rosterly/rosterd/internal/infrastructure/postgres"
)

const seedPassword = "Demo-Pass-2026!"

type account struct {
	email     string
	role      domain.Role
	firstName string
	lastName  string
	quals     []string
}

var accounts = []account{
	{"admin@rosterly.local", domain.RoleAdmin, "Ada", "Admin", nil},
	{"manager@rosterly.local", domain.RoleManager, "Mori", "Manager", nil},
	{"scheduler@rosterly.local", domain.RoleScheduler, "Sam", "Scheduler", nil},
	{"cook@rosterly.local", domain.RoleEmployee, "Casey", "Cook", []string{"grill", "food-safety"}},
	{"server@rosterly.local", domain.RoleEmployee, "Riley", "Server", []string{"pos"}},
	{"barista@rosterly.local", domain.RoleEmployee, "Bobbie", "Barista", []string{"espresso", "pos"}},
}

func weekdayAvailability(start, end domain.Clock) domain.Availability {
	days := []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
	a := make(domain.Availability, len(days))
	for _, d := range days {
		a[d] = domain.DayWindow{Available: true, Start: start, End: end}
	}
	return a
}

func main() {
	_ = godotenv.Load()
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL, 5)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}

	departments := postgres.NewDepartmentRepository(pool)
	employees := postgres.NewEmployeeRepository(pool)
	shifts := postgres.NewShiftRepository(pool)
	schedules := postgres.NewScheduleRepository(pool)

	kitchen, err := departments.Create(ctx, &domain.Department{Name: "Kitchen"})
	if err != nil {
		log.Fatalf("create department: %v", err)
	}
	front, err := departments.Create(ctx, &domain.Department{Name: "Front of House"})
	if err != nil {
		log.Fatalf("create department: %v", err)
	}

	hash, err := auth.HashPassword(seedPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	var adminID string
	for _, a := range accounts {
		dept := &front.ID
		if a.role != domain.RoleEmployee {
			dept = nil
		} else if a.email == "cook@rosterly.local" {
			dept = &kitchen.ID
		}
		emp, err := employees.Create(ctx, &domain.Employee{
			Email:           a.email,
			PasswordHash:    hash,
			Role:            a.role,
			DepartmentID:    dept,
			FirstName:       a.firstName,
			LastName:        a.lastName,
			HourlyRate:      18.50,
			MaxHoursPerWeek: 40,
			Qualifications:  a.quals,
			Availability:    weekdayAvailability(domain.Clock(7*60), domain.Clock(22*60)),
			IsActive:        true,
		})
		if err != nil {
			log.Fatalf("create employee %s: %v", a.email, err)
		}
		if a.role == domain.RoleAdmin {
			adminID = emp.ID
		}
	}

	// Next Monday, one morning and one evening shift per weekday.
	weekStart := nextMonday(time.Now().UTC())
	var shiftRows []*domain.Shift
	for day := 0; day < 5; day++ {
		date := weekStart.AddDate(0, 0, day)
		shiftRows = append(shiftRows,
			&domain.Shift{
				Date: date, Start: domain.Clock(8 * 60), End: domain.Clock(16 * 60),
				Type: domain.ShiftMorning, DepartmentID: &kitchen.ID,
				RequiredStaff: 1, Priority: 5, Requirements: []string{"food-safety"},
			},
			&domain.Shift{
				Date: date, Start: domain.Clock(14 * 60), End: domain.Clock(22 * 60),
				Type: domain.ShiftEvening, DepartmentID: &front.ID,
				RequiredStaff: 2, Priority: 5,
			},
		)
	}
	created, err := shifts.CreateBulk(ctx, shiftRows)
	if err != nil {
		log.Fatalf("create shifts: %v", err)
	}

	sched, err := schedules.Create(ctx, &domain.Schedule{
		Title:     "Week of " + weekStart.Format("Jan 2"),
		WeekStart: weekStart,
		WeekEnd:   weekStart.AddDate(0, 0, 7),
		Status:    domain.ScheduleDraft,
		CreatedBy: adminID,
		Version:   1,
	})
	if err != nil {
		log.Fatalf("create schedule: %v", err)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Accounts (password %q):\n", seedPassword)
	for _, a := range accounts {
		fmt.Printf("    %-28s %s\n", a.email, a.role)
	}
	fmt.Printf("  Shifts:   %d (week of %s)\n", len(created), weekStart.Format("2006-01-02"))
	fmt.Printf("  Schedule: %s (%s)\n", sched.ID, sched.Status)
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1 — grab a CSRF token (mutating requests need it):")
	fmt.Println()
	fmt.Println("    curl -s -c jar http://localhost:8080/api/csrf-token")
	fmt.Println("    export CSRF=<csrfToken from the response>")
	fmt.Println()
	fmt.Println("  Step 2 — log in:")
	fmt.Println()
	fmt.Println("    curl -s -b jar -X POST http://localhost:8080/api/auth/login \\")
	fmt.Println("      -H \"X-CSRF-Token: $CSRF\" -H 'Content-Type: application/json' \\")
	fmt.Println("      -d '{\"email\":\"scheduler@rosterly.local\",\"password\":\"" + seedPassword + "\"}'")
	fmt.Println()
	fmt.Println("  Step 3 — generate and apply a plan:")
	fmt.Println()
	fmt.Println("    export JWT=eyJ...")
	fmt.Printf("    curl -s -b jar -X POST http://localhost:8080/api/schedule/generate \\\n")
	fmt.Printf("      -H \"Authorization: Bearer $JWT\" -H \"X-CSRF-Token: $CSRF\" \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' \\\n")
	fmt.Printf("      -d '{\"schedule_id\":\"%s\",\"apply\":true}'\n", sched.ID)
}

func nextMonday(t time.Time) time.Time {
	t = t.Truncate(24 * time.Hour)
	for t.Weekday() != time.Monday {
		t = t.AddDate(0, 0, 1)
	}
	return t
}
