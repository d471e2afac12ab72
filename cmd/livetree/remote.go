package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	lterrors "github.com/livetree-dev/livetree/internal/errors"
)

// client talks to the REST API of a running page.
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimSuffix(base, "/") + "/api",
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// apiError is the error body of the REST API.
type apiError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail"`
	Suggestion string `json:"suggestion"`
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var e apiError
		if json.Unmarshal(data, &e) != nil || e.Code == "" {
			return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(data))
		}
		coded := lterrors.New(e.Code)
		if e.Message != "" {
			coded.Message = e.Message
		}
		if e.Detail != "" {
			coded = coded.WithDetail(e.Detail)
		}
		if e.Suggestion != "" {
			coded = coded.WithSuggestion(e.Suggestion)
		}
		return coded
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// parseValue reads s as JSON, falling back to the plain string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// defaultURL is the URL of the page server of the loaded configuration.
func defaultURL() string {
	addr := ":8080"
	if cfg, err := loadConfig(); err == nil {
		addr = cfg.Server.Address
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost:8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return (&url.URL{Scheme: "http", Host: net.JoinHostPort(host, port)}).String()
}

func remoteCmds() []*cobra.Command {
	var base string
	connect := func() *client {
		if base == "" {
			base = defaultURL()
		}
		return newClient(base)
	}
	withURL := func(cmd *cobra.Command) *cobra.Command {
		cmd.Flags().StringVarP(&base, "url", "u", "", "Base URL of the page server (default from config)")
		return cmd
	}

	return []*cobra.Command{
		withURL(statusCmd(connect)),
		withURL(pushCmd(connect)),
		withURL(removeCmd(connect)),
		withURL(callCmd(connect)),
		withURL(setCmd(connect)),
	}
}

func statusCmd(connect func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := connect()
			var status map[string]any
			if err := c.do(cmd.Context(), http.MethodGet, "/status", nil, &status); err != nil {
				return err
			}
			var list struct {
				Elements map[string]any `json:"elements"`
			}
			if err := c.do(cmd.Context(), http.MethodGet, "/elements", nil, &list); err != nil {
				return err
			}
			success("%v is %v", status["title"], status["status"])
			info("Connections: %v", status["connections"])
			info("Elements:    %d", len(list.Elements))
			return nil
		},
	}
}

func pushCmd(connect func() *client) *cobra.Command {
	var (
		id       string
		parentID string
		rootID   string
		newRoot  bool
		inputs   map[string]string
	)

	cmd := &cobra.Command{
		Use:   "push page.yaml",
		Short: "Add the elements of a DSL document to a running page",
		Long: `Add the elements of a DSL document to a running page.

Examples:
  livetree push card.yaml
  livetree push card.yaml --id summary --parent main`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			in := make(map[string]any, len(inputs))
			for k, v := range inputs {
				in[k] = v
			}
			body := map[string]any{
				"obj":       string(data),
				"inputs":    in,
				"parent_id": parentID,
				"root_id":   rootID,
				"new_root":  newRoot,
			}
			method, path := http.MethodPost, "/elements"
			if id != "" {
				method, path = http.MethodPut, "/elements/"+url.PathEscape(id)
			}
			var created map[string]any
			if err := connect().do(cmd.Context(), method, path, body, &created); err != nil {
				return err
			}
			success("Created %v %v", created["kind"], created["id"])
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Id of the new element")
	cmd.Flags().StringVarP(&parentID, "parent", "p", "", "Parent element id")
	cmd.Flags().StringVar(&rootID, "root", "", "Root id to add the element to")
	cmd.Flags().BoolVar(&newRoot, "new-root", false, "Create the element under a new root")
	cmd.Flags().StringToStringVarP(&inputs, "input", "i", nil, "DSL input values (name=value)")

	return cmd
}

func removeCmd(connect func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "rm id...",
		Short: "Remove elements from a running page",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := connect()
			for _, id := range args {
				if err := c.do(cmd.Context(), http.MethodDelete, "/elements/"+url.PathEscape(id), nil, nil); err != nil {
					return err
				}
				success("Removed %s", id)
			}
			return nil
		},
	}
}

func callCmd(connect func() *client) *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "call id [name=value...]",
		Short: "Call a function or an element method",
		Long: `Call a registered function, or with --method a method of the element id.

Values are read as JSON when they parse, as strings otherwise.

Examples:
  livetree call refresh
  livetree call status --method set text="all green"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kwargs := map[string]any{}
			for _, kv := range args[1:] {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("argument %q is not name=value", kv)
				}
				kwargs[k] = parseValue(v)
			}
			path := "/functions/" + url.PathEscape(args[0])
			if method != "" {
				path = "/elements/" + url.PathEscape(args[0]) + "/call/" + url.PathEscape(method)
			}
			var out map[string]any
			if err := connect().do(cmd.Context(), http.MethodPost, path, map[string]any{"kwargs": kwargs}, &out); err != nil {
				return err
			}
			if len(out) == 0 {
				return nil
			}
			keys := make([]string, 0, len(out))
			for k := range out {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				info("%s: %v", k, out[k])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", "", "Element method to call")

	return cmd
}

func setCmd(connect func() *client) *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "set variable value",
		Short: "Update a variable of a running page",
		Long: `Update a variable, or with --create create it.

The value is read as JSON when it parses, as a string otherwise.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := http.MethodPost
			if create {
				method = http.MethodPut
			}
			var out map[string]any
			path := "/variables/" + url.PathEscape(args[0])
			if err := connect().do(cmd.Context(), method, path, map[string]any{"value": parseValue(args[1])}, &out); err != nil {
				return err
			}
			return printJSON(out)
		},
	}

	cmd.Flags().BoolVar(&create, "create", false, "Create the variable")

	return cmd
}
