package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Noema server URL")
	owner := flag.String("owner", "cli-owner", "Owner ID for submitted events")
	flag.Parse()

	fmt.Println("Noema CLI")
	fmt.Printf("Server: %s | Owner: %s\n", *server, *owner)
	fmt.Println("Type anything to talk to the creature. 'exit' or 'quit' to leave.")
	fmt.Println("Commands: /feed, /play, /teach <topic>, /self, /behaviors, /metrics, /suggest")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}

		switch {
		case input == "/feed":
			sendEvent(*server, *owner, map[string]string{"action": "feed"})
		case input == "/play":
			sendEvent(*server, *owner, map[string]string{"action": "play", "thing": "ball"})
		case strings.HasPrefix(input, "/teach "):
			topic := strings.TrimSpace(strings.TrimPrefix(input, "/teach "))
			sendEvent(*server, *owner, map[string]string{"action": "teach", "topic": topic})
		case input == "/self":
			fetchSelf(*server, *owner)
		case input == "/behaviors":
			fetchBehaviors(*server)
		case input == "/metrics":
			fetchJSON(*server, "/api/metrics")
		case input == "/suggest":
			fetchSuggestion(*server)
		default:
			sendEvent(*server, *owner, "speak "+input)
		}
	}
}

func sendEvent(server, owner string, payload any) {
	raw, _ := json.Marshal(payload)
	body, _ := json.Marshal(map[string]json.RawMessage{
		"owner_id": json.RawMessage(fmt.Sprintf("%q", owner)),
		"payload":  raw,
	})

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Post(server+"/api/events", "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}

	var result struct {
		Symbols    []string `json:"symbols"`
		MemoryID   string   `json:"memory_id"`
		Resonance  float64  `json:"resonance"`
		Learned    bool     `json:"learned"`
		SingleShot bool     `json:"single_shot"`
		Response   *struct {
			LoopID   string   `json:"loop_id"`
			Features []string `json:"features"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}

	fmt.Printf("symbols: %s\n", strings.Join(result.Symbols, ", "))
	switch {
	case result.Response != nil:
		fmt.Printf("\033[32mresponded\033[0m with %s (loop %s)\n",
			strings.Join(result.Response.Features, ", "), result.Response.LoopID)
	case result.SingleShot:
		fmt.Println("\033[33msingle-shot\033[0m learned on one exposure")
	case result.Learned:
		fmt.Println("\033[36mlearned\033[0m a new pattern")
	default:
		fmt.Printf("resonance %.2f\n", result.Resonance)
	}
}

func fetchSelf(server, owner string) {
	resp, err := http.Get(server + "/api/self/" + owner)
	if err != nil {
		printError("Failed to fetch self description: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		fmt.Println("The creature doesn't know you yet. Send it some events first.")
		return
	}

	var desc struct {
		Name          string             `json:"name"`
		Personality   map[string]float64 `json:"personality"`
		TopValues     []string           `json:"top_values"`
		Relationships int                `json:"relationships"`
		Coherence     float64            `json:"coherence"`
		SelfAwareness float64            `json:"self_awareness"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		printError("Failed to parse self description: %v", err)
		return
	}

	fmt.Printf("I am %s.\n", desc.Name)
	for trait, v := range desc.Personality {
		fmt.Printf("  %-12s %s %.2f\n", trait, bar(v), v)
	}
	fmt.Printf("values: %s\n", strings.Join(desc.TopValues, ", "))
	fmt.Printf("coherence: %.2f | self-awareness: %.2f | relationships: %d\n",
		desc.Coherence, desc.SelfAwareness, desc.Relationships)
}

func fetchBehaviors(server string) {
	resp, err := http.Get(server + "/api/behaviors")
	if err != nil {
		printError("Failed to fetch behaviors: %v", err)
		return
	}
	defer resp.Body.Close()

	var loops []struct {
		ID       string   `json:"id"`
		Trigger  []string `json:"trigger"`
		State    string   `json:"state"`
		Strength float64  `json:"strength"`
		Success  int      `json:"success_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loops); err != nil {
		printError("Failed to parse behaviors: %v", err)
		return
	}
	if len(loops) == 0 {
		fmt.Println("No crystallized behaviors yet.")
		return
	}
	for _, l := range loops {
		fmt.Printf("  [%s] %s  strength=%.2f successes=%d  (%s)\n",
			l.State, strings.Join(l.Trigger, "+"), l.Strength, l.Success, l.ID)
	}
}

func fetchSuggestion(server string) {
	resp, err := http.Get(server + "/api/curiosity/suggestion")
	if err != nil {
		printError("Failed to fetch suggestion: %v", err)
		return
	}
	defer resp.Body.Close()

	var s struct {
		Category string `json:"category"`
		Hint     string `json:"hint"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		printError("Failed to parse suggestion: %v", err)
		return
	}
	if s.Hint == "" {
		fmt.Println("Nothing in particular right now.")
		return
	}
	fmt.Printf("\033[35m%s\033[0m (%s)\n", s.Hint, s.Category)
}

func fetchJSON(server, path string) {
	resp, err := http.Get(server + path)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	var v any
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}
	pretty, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(pretty))
}

func bar(v float64) string {
	filled := int(v * 10)
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
