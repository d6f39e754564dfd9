// flowctl is an interactive operator shell for a running flowkeepd: create
// and inspect workflow revisions, flip their active flag, run them, and
// fetch execution traces, all over the HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"gopkg.in/yaml.v3"
)

const defaultBaseURL = "http://127.0.0.1:8080"

type client struct {
	baseURL string
	http    *http.Client
}

func main() {
	baseURL := os.Getenv("FLOWKEEP_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &client{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 60 * time.Second}}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "flowkeep> ",
		HistoryFile:     historyPath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "flowctl:", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Printf("flowctl connected to %s (type \"help\" for commands)\n", c.baseURL)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		args := strings.Fields(strings.TrimSpace(line))
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "exit", "quit":
			return
		case "help":
			printHelp()
		default:
			if err := c.dispatch(args); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
		}
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.flowctl_history"
}

func printHelp() {
	fmt.Print(`commands:
  workflows <ns>                     list workflows in a namespace
  revisions <ns> <id>                list a workflow's revisions
  show <ns> <id> <version>           print a revision's document
  create <file.yaml>                 create a new workflow (version 1)
  next <ns> <id> <file.yaml>         create the next revision
  activate <ns> <id> <version>       activate a revision
  deactivate <ns> <id> <version>     deactivate a revision
  delete <ns> <id> [version]         delete a revision, or the whole workflow
  run <ns> <id> <version> [k=v ...]  execute a revision
  exec <executionId>                 print an execution trace
  exit
`)
}

func (c *client) dispatch(args []string) error {
	switch args[0] {
	case "workflows":
		if len(args) != 2 {
			return fmt.Errorf("usage: workflows <ns>")
		}
		return c.getJSON("/api/workflows?namespace=" + args[1])
	case "revisions":
		if len(args) != 3 {
			return fmt.Errorf("usage: revisions <ns> <id>")
		}
		return c.getRaw(fmt.Sprintf("/api/workflows/%s/%s", args[1], args[2]))
	case "show":
		if len(args) != 4 {
			return fmt.Errorf("usage: show <ns> <id> <version>")
		}
		return c.getRaw(fmt.Sprintf("/api/workflows/%s/%s/%s", args[1], args[2], args[3]))
	case "create":
		if len(args) != 2 {
			return fmt.Errorf("usage: create <file.yaml>")
		}
		return c.postDocument("/api/workflows", args[1])
	case "next":
		if len(args) != 4 {
			return fmt.Errorf("usage: next <ns> <id> <file.yaml>")
		}
		return c.postDocument(fmt.Sprintf("/api/workflows/%s/%s", args[1], args[2]), args[3])
	case "activate":
		if len(args) != 4 {
			return fmt.Errorf("usage: activate <ns> <id> <version>")
		}
		return c.setActive(args[1], args[2], args[3], true)
	case "deactivate":
		if len(args) != 4 {
			return fmt.Errorf("usage: deactivate <ns> <id> <version>")
		}
		return c.setActive(args[1], args[2], args[3], false)
	case "delete":
		switch len(args) {
		case 3:
			return c.delete(fmt.Sprintf("/api/workflows/%s/%s", args[1], args[2]))
		case 4:
			return c.delete(fmt.Sprintf("/api/workflows/%s/%s/%s", args[1], args[2], args[3]))
		default:
			return fmt.Errorf("usage: delete <ns> <id> [version]")
		}
	case "run":
		if len(args) < 4 {
			return fmt.Errorf("usage: run <ns> <id> <version> [k=v ...]")
		}
		return c.run(args[1], args[2], args[3], args[4:])
	case "exec":
		if len(args) != 2 {
			return fmt.Errorf("usage: exec <executionId>")
		}
		return c.getJSON("/api/executions/" + args[1])
	default:
		return fmt.Errorf("unknown command %q (try \"help\")", args[0])
	}
}

func (c *client) getRaw(path string) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	fmt.Println(strings.TrimRight(string(body), "\n"))
	return nil
}

func (c *client) getJSON(path string) error {
	return c.getRaw(path)
}

func (c *client) delete(path string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	fmt.Println("deleted")
	return nil
}

func (c *client) postDocument(path, file string) error {
	doc, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.baseURL+path, "application/yaml", bytes.NewReader(doc))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	fmt.Println(strings.TrimRight(string(body), "\n"))
	return nil
}

// setActive reads the revision's current updatedAt from the listing and
// presents it as the optimistic-lock token.
func (c *client) setActive(ns, id, version string, active bool) error {
	v, err := strconv.Atoi(version)
	if err != nil {
		return fmt.Errorf("version must be an integer")
	}
	stamp, err := c.currentUpdatedAt(ns, id, v)
	if err != nil {
		return err
	}

	action := "deactivate"
	if active {
		action = "activate"
	}
	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("%s/api/workflows/%s/%s/%d/%s", c.baseURL, ns, id, v, action), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Current-Updated-At", stamp)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	fmt.Println(strings.TrimRight(string(body), "\n"))
	return nil
}

func (c *client) currentUpdatedAt(ns, id string, version int) (string, error) {
	resp, err := c.http.Get(fmt.Sprintf("%s/api/workflows/%s/%s", c.baseURL, ns, id))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var revisions []struct {
		Version   int    `yaml:"version"`
		UpdatedAt string `yaml:"updatedAt"`
	}
	if err := yaml.Unmarshal(body, &revisions); err != nil {
		return "", fmt.Errorf("parse revision listing: %w", err)
	}
	for _, rev := range revisions {
		if rev.Version == version {
			return rev.UpdatedAt, nil
		}
	}
	return "", fmt.Errorf("revision %d not found", version)
}

func (c *client) run(ns, id, version string, kvs []string) error {
	v, err := strconv.Atoi(version)
	if err != nil {
		return fmt.Errorf("version must be an integer")
	}
	params := make(map[string]interface{}, len(kvs))
	for _, kv := range kvs {
		key, value, found := strings.Cut(kv, "=")
		if !found || key == "" {
			return fmt.Errorf("parameters must be key=value, got %q", kv)
		}
		params[key] = value
	}

	payload, err := json.Marshal(map[string]interface{}{
		"namespace":  ns,
		"id":         id,
		"version":    v,
		"parameters": params,
	})
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.baseURL+"/api/executions", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	fmt.Println(strings.TrimRight(string(body), "\n"))
	return nil
}
