// cmd/adwctl/main.go
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
)

const defaultAddr = "http://127.0.0.1:8787"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = cmdStatus(args)
	case "triggers":
		err = cmdTriggers(args)
	case "history":
		err = cmdHistory(args)
	case "emit":
		err = cmdEmit(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`adwctl - client for the adwd trigger daemon

Usage: adwctl <command> [options]

Commands:
  status            Show daemon health
  triggers          List trigger types and their instance state
  history           Show the dispatch journal
  emit              Emit an event through the manual trigger

Common options:
  -addr <url>       Daemon API address (default ` + defaultAddr + `)`)
}

func addrFlag(fs *flag.FlagSet) *string {
	return fs.String("addr", defaultAddr, "daemon API address")
}

func cmdStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addr := addrFlag(fs)
	fs.Parse(args)

	return getJSON(*addr + "/health")
}

func cmdTriggers(args []string) error {
	fs := flag.NewFlagSet("triggers", flag.ExitOnError)
	addr := addrFlag(fs)
	fs.Parse(args)

	return getJSON(*addr + "/api/triggers")
}

func cmdHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	addr := addrFlag(fs)
	triggerName := fs.String("trigger", "", "filter by trigger name")
	limit := fs.Int("limit", 50, "max records")
	fs.Parse(args)

	url := fmt.Sprintf("%s/api/history?limit=%d", *addr, *limit)
	if *triggerName != "" {
		url += "&trigger=" + *triggerName
	}
	return getJSON(url)
}

func cmdEmit(args []string) error {
	fs := flag.NewFlagSet("emit", flag.ExitOnError)
	addr := addrFlag(fs)
	eventType := fs.String("type", "issue_workflow", "event type")
	workflow := fs.String("workflow", "", "workflow name added to the payload")
	issue := fs.Int("issue", 0, "issue number")
	adwID := fs.String("adw-id", "", "adw id of existing work to continue")
	repoPath := fs.String("repo", "", "repository path")
	fs.Parse(args)

	payload := map[string]any{}
	if *workflow != "" {
		payload["workflow"] = *workflow
	}
	// Remaining args are key=value payload entries.
	for _, arg := range fs.Args() {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("payload entries must be key=value, got %q", arg)
		}
		if n, err := strconv.Atoi(value); err == nil {
			payload[key] = n
		} else {
			payload[key] = value
		}
	}

	body, err := json.Marshal(map[string]any{
		"event_type":   *eventType,
		"payload":      payload,
		"issue_number": *issue,
		"adw_id":       *adwID,
		"repo_path":    *repoPath,
	})
	if err != nil {
		return err
	}

	resp, err := http.Post(*addr+"/api/emit", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("calling daemon: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func getJSON(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("calling daemon: %w", err)
	}
	defer resp.Body.Close()

	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		fmt.Println(strings.TrimSpace(string(data)))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
