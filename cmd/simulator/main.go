package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Global flags
	apiURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "session":
		sessionCmd(apiURL, args)
	case "poll":
		pollCmd(apiURL, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Session Simulator - Development tool for exercising teaching sessions

USAGE:
  simulator <command> [options]

COMMANDS:
  session   Register two users, alternate the teaching timer, end and settle
  poll      Register two users and drive a session through the polling endpoints
  help      Show this help message

ENVIRONMENT:
  API_URL   Backend API URL (default: http://localhost:8080)

EXAMPLES:
  # Each user teaches for 3 seconds, twice
  simulator session --teach=3s --rounds=2

  # Leave the session open so you can join it from a browser
  simulator session --keep-open

  # Sync a snapshot and a signal, then print the event stream
  simulator poll`)
}

func fail(step string, err error) {
	fmt.Printf("FAILED\n  %s: %v\n", step, err)
	os.Exit(1)
}

func sessionCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("session", flag.ExitOnError)
	teach := fs.Duration("teach", 2*time.Second, "How long each turn at the timer lasts")
	rounds := fs.Int("rounds", 1, "Number of turns per user")
	keepOpen := fs.Bool("keep-open", false, "Do not end the session")
	fs.Parse(args)

	if *rounds < 1 {
		fmt.Println("Error: --rounds must be at least 1")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)

	fmt.Println("=== Session Simulator: Teaching Flow ===")
	fmt.Println()

	fmt.Print("Registering users... ")
	alice, aliceToken, err := client.RegisterUser("Alice")
	if err != nil {
		fail("register", err)
	}
	bob, bobToken, err := client.RegisterUser("Bob")
	if err != nil {
		fail("register", err)
	}
	fmt.Printf("OK (%s %.2f credits, %s %.2f credits)\n", alice.DisplayName, alice.Credits, bob.DisplayName, bob.Credits)

	fmt.Print("Creating session... ")
	created, err := client.CreateSession(aliceToken, bob.ID)
	if err != nil {
		fail("create session", err)
	}
	sessionID := created.Session.ID
	fmt.Printf("OK (%s)\n", sessionID)

	fmt.Println()
	fmt.Printf("Alternating the timer for %d round(s) of %s:\n", *rounds, *teach)
	turns := []struct {
		name  string
		token string
	}{{alice.DisplayName, aliceToken}, {bob.DisplayName, bobToken}}

	for round := 1; round <= *rounds; round++ {
		for _, turn := range turns {
			started, err := client.StartTimer(turn.token, sessionID)
			if err != nil {
				fail("start timer", err)
			}
			if started.Preempted != nil {
				fmt.Printf("  preempted timer %s\n", started.Preempted.ID)
			}
			time.Sleep(*teach)
			stopped, err := client.StopTimer(turn.token, sessionID)
			if err != nil {
				fail("stop timer", err)
			}
			fmt.Printf("  [round %d] %s taught %ds (total %ds)\n", round, turn.name, stopped.Timer.DurationSeconds, stopped.NewTotalTime)
		}
	}

	if *keepOpen {
		fmt.Println()
		fmt.Printf("  Session %s left open\n", sessionID)
		fmt.Printf("  Alice token: %s\n", aliceToken)
		fmt.Printf("  Bob token:   %s\n", bobToken)
		return
	}

	fmt.Println()
	fmt.Print("Ending session... ")
	summary, err := client.EndSession(bobToken, sessionID)
	if err != nil {
		fail("end session", err)
	}
	fmt.Println("OK")
	printSummary(summary)

	for _, token := range []string{aliceToken, bobToken} {
		me, err := client.Me(token)
		if err != nil {
			fail("me", err)
		}
		fmt.Printf("  %s balance: %.2f\n", me.DisplayName, me.Credits)
	}
}

func pollCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("poll", flag.ExitOnError)
	fs.Parse(args)

	client := NewAPIClient(apiURL)

	fmt.Println("=== Session Simulator: Polling Flow ===")
	fmt.Println()

	fmt.Print("Registering users... ")
	_, aliceToken, err := client.RegisterUser("Alice")
	if err != nil {
		fail("register", err)
	}
	bob, bobToken, err := client.RegisterUser("Bob")
	if err != nil {
		fail("register", err)
	}
	fmt.Println("OK")

	created, err := client.CreateSession(aliceToken, bob.ID)
	if err != nil {
		fail("create session", err)
	}
	sessionID := created.Session.ID

	fmt.Print("Syncing state... ")
	if err := client.Heartbeat(aliceToken); err != nil {
		fail("heartbeat", err)
	}
	if err := client.Sync(aliceToken, sessionID, map[string]any{
		"code_data": map[string]any{"language": "go", "content": "package main", "source": "simulator"},
		"signal":    map[string]any{"type": "offer", "sdp": "v=0"},
	}); err != nil {
		fail("sync", err)
	}
	if err := client.SendChat(aliceToken, sessionID, "hello from the simulator"); err != nil {
		fail("chat", err)
	}
	fmt.Println("OK")

	events, err := client.Events(bobToken, sessionID, 0)
	if err != nil {
		fail("events", err)
	}
	fmt.Println()
	fmt.Printf("Events seen by %s:\n", bob.DisplayName)
	for _, e := range events.Events {
		fmt.Printf("  #%d %s\n", e.ID, e.Type)
	}

	updates, err := client.Updates(bobToken, sessionID)
	if err != nil {
		fail("updates", err)
	}
	fmt.Printf("  last event %d, balance %.2f\n", updates.LastEventID, updates.YourCredits)
}

func printSummary(s *Summary) {
	fmt.Println()
	fmt.Println("=========================================")
	fmt.Println("  SETTLEMENT")
	fmt.Println("=========================================")
	for _, p := range []Participant{s.User1, s.User2} {
		fmt.Printf("  %-16s taught %4ds  earned %6.2f  spent %6.2f\n", p.DisplayName, p.TeachingSeconds, p.CreditsEarned, p.CreditsSpent)
	}
	fmt.Printf("  bank cut %.2f\n", s.BankCut)
	fmt.Println()
}
